// Package export renders recorded chain runs for humans and tools.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/moa/internal/trace"
)

// maxLabel bounds node label length in diagrams.
const maxLabel = 40

// group is the responses of one executed layer.
type group struct {
	iteration  int
	layerIndex int
	layer      string
	agents     []trace.Response
	aggregate  *trace.Response
}

// groupResponses splits ordered responses into executed layers.
func groupResponses(rs []trace.Response) []*group {
	var out []*group
	for i := range rs {
		r := rs[i]
		if len(out) == 0 || out[len(out)-1].iteration != r.Iteration || out[len(out)-1].layerIndex != r.LayerIndex {
			out = append(out, &group{iteration: r.Iteration, layerIndex: r.LayerIndex, layer: r.Layer})
		}
		g := out[len(out)-1]
		if r.Kind == trace.ResponseAggregate {
			g.aggregate = &r
		} else {
			g.agents = append(g.agents, r)
		}
	}
	return out
}

// Mermaid produces a Mermaid flowchart of one run: a subgraph per executed
// layer, arrows from agent responses into their aggregate, and dotted arrows
// from each aggregate into the next layer's agents.
func Mermaid(ctx context.Context, store trace.Store, runID string) (string, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	resps, err := store.Responses(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("get responses: %w", err)
	}

	// Mermaid IDs must be alphanumeric.
	nodeIDs := make(map[string]string)
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  %s([\"%s\"])\n", getID("query"), label(run.Query))

	groups := groupResponses(resps)
	for _, g := range groups {
		fmt.Fprintf(&sb, "  subgraph %s[\"iteration %d: %s\"]\n", getID(fmt.Sprintf("g%d_%d", g.iteration, g.layerIndex)), g.iteration+1, label(g.layer))
		for _, a := range g.agents {
			text := a.Agent
			if a.Error != "" {
				text += " (failed)"
			}
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(a.ID), label(text))
		}
		if g.aggregate != nil {
			fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", getID(g.aggregate.ID), label(g.aggregate.Content))
		}
		sb.WriteString("  end\n")
	}

	prev := getID("query")
	for _, g := range groups {
		for _, a := range g.agents {
			fmt.Fprintf(&sb, "  %s -.-> %s\n", prev, getID(a.ID))
		}
		if g.aggregate == nil {
			break
		}
		sources, err := store.Sources(ctx, g.aggregate.ID)
		if err != nil {
			return "", fmt.Errorf("get sources: %w", err)
		}
		for _, s := range sources {
			fmt.Fprintf(&sb, "  %s --> %s\n", getID(s.ID), getID(g.aggregate.ID))
		}
		prev = getID(g.aggregate.ID)
	}

	return sb.String(), nil
}

// label flattens and truncates text for use inside a quoted Mermaid label.
func label(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, `"`, "'")
	if r := []rune(s); len(r) > maxLabel {
		s = string(r[:maxLabel-3]) + "..."
	}
	return s
}
