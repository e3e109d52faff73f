package prompt

import (
	"testing"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestRenderAgent(t *testing.T) {
	prior := []core.ModelResponse{{Content: "first"}, {Content: "second"}}

	got := RenderAgent("Q: {input}\nBefore:\n{previous_responses}\nKeep {responses}", "X", prior)
	assert.Equal(t, "Q: X\nBefore:\nfirst\nsecond\nKeep {responses}", got)
}

func TestRenderAgent_NoPrior(t *testing.T) {
	assert.Equal(t, "X|", RenderAgent("{input}|{previous_responses}", "X", nil))
}

func TestRender_SinglePass(t *testing.T) {
	// The substituted input contains a placeholder; it must not be expanded.
	got := RenderAgent("{input} / {previous_responses}", "say {previous_responses}", []core.ModelResponse{{Content: "p"}})
	assert.Equal(t, "say {previous_responses} / p", got)
}

func TestFormatResponses(t *testing.T) {
	got := FormatResponses([]core.ModelResponse{{Content: "alpha"}, {Content: "beta"}})
	assert.Equal(t, "Response 1:\nalpha\n\nResponse 2:\nbeta", got)
}

func TestRenderSynthesis(t *testing.T) {
	got := RenderSynthesis("Merge:\n{responses}\nfor {input}", []core.ModelResponse{{Content: "a"}})
	assert.Equal(t, "Merge:\nResponse 1:\na\nfor {input}", got)
}
