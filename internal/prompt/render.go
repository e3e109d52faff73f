package prompt

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/moa/internal/core"
)

// Placeholders recognized during substitution.
const (
	PlaceholderInput             = "{input}"
	PlaceholderPreviousResponses = "{previous_responses}"
	PlaceholderResponses         = "{responses}"
)

// Render substitutes every placeholder in vars in a single pass. Substituted
// text is never rescanned, so a response that itself contains "{input}" is
// left as written. Placeholders absent from vars are left untouched.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// RenderAgent fills the agent placeholders: the current chain input and the
// newline-joined content of all prior aggregated responses.
func RenderAgent(tmpl, input string, prior []core.ModelResponse) string {
	return Render(tmpl, map[string]string{
		PlaceholderInput:             input,
		PlaceholderPreviousResponses: JoinContents(prior),
	})
}

// RenderSynthesis fills {responses} with the enumerated response blocks.
func RenderSynthesis(tmpl string, responses []core.ModelResponse) string {
	return Render(tmpl, map[string]string{
		PlaceholderResponses: FormatResponses(responses),
	})
}

// JoinContents joins response contents with single newlines.
func JoinContents(responses []core.ModelResponse) string {
	parts := make([]string, len(responses))
	for i, r := range responses {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n")
}

// FormatResponses renders responses as "Response <i>:\n<content>" blocks,
// 1-indexed in input order, separated by blank lines.
func FormatResponses(responses []core.ModelResponse) string {
	blocks := make([]string, len(responses))
	for i, r := range responses {
		blocks[i] = fmt.Sprintf("Response %d:\n%s", i+1, r.Content)
	}
	return strings.Join(blocks, "\n\n")
}
