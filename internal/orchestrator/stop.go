package orchestrator

import (
	"strings"

	"github.com/dusk-indust/moa/internal/core"
)

// StopFunc adapts a function to core.StopPredicate.
type StopFunc func(history []core.ModelResponse) bool

// ShouldStop calls f.
func (f StopFunc) ShouldStop(history []core.ModelResponse) bool {
	return f(history)
}

// ContainsStop stops once the latest aggregate contains substr.
func ContainsStop(substr string) core.StopPredicate {
	return StopFunc(func(history []core.ModelResponse) bool {
		if substr == "" || len(history) == 0 {
			return false
		}
		return strings.Contains(history[len(history)-1].Content, substr)
	})
}

// MaxResponsesStop stops once the history holds n aggregates.
func MaxResponsesStop(n int) core.StopPredicate {
	return StopFunc(func(history []core.ModelResponse) bool {
		return n > 0 && len(history) >= n
	})
}

// ConvergedStop stops when the last two aggregates are equal after
// collapsing whitespace.
func ConvergedStop() core.StopPredicate {
	return StopFunc(func(history []core.ModelResponse) bool {
		if len(history) < 2 {
			return false
		}
		return collapseSpace(history[len(history)-1].Content) == collapseSpace(history[len(history)-2].Content)
	})
}

// AnyStop stops when any of preds does. Nil predicates are skipped, and with
// none left it returns nil.
func AnyStop(preds ...core.StopPredicate) core.StopPredicate {
	var live []core.StopPredicate
	for _, p := range preds {
		if p != nil {
			live = append(live, p)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return StopFunc(func(history []core.ModelResponse) bool {
		for _, p := range live {
			if p.ShouldStop(history) {
				return true
			}
		}
		return false
	})
}
