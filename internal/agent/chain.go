package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/dusk-indust/moa/internal/a2a"
	"github.com/dusk-indust/moa/internal/core"
)

// AnswerArtifact names the artifact carrying the chain's final answer.
const AnswerArtifact = "answer"

// Runner executes a chain for one query.
type Runner interface {
	Run(ctx context.Context, query string) core.ModelResponse
}

// ErrEmptyQuery is returned when a message carries no text.
var ErrEmptyQuery = errors.New("message has no text parts")

// NewChainAgent serves chain as an A2A agent. The message's text parts form
// the query; an error-bearing response fails the task.
func NewChainAgent(chain Runner, card a2a.AgentCard) *BaseAgent {
	return NewBaseAgent(card, func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
		query := strings.TrimSpace(msg.Text())
		if query == "" {
			return nil, ErrEmptyQuery
		}
		resp := chain.Run(ctx, query)
		if resp.Err != nil {
			return nil, resp.Err
		}
		return []a2a.Artifact{{
			ArtifactID: task.ID + "-" + AnswerArtifact,
			Name:       AnswerArtifact,
			Parts:      []a2a.Part{a2a.TextPart(resp.Content)},
		}}, nil
	})
}

// DefaultCard describes a chain agent at url.
func DefaultCard(name, version, url string) a2a.AgentCard {
	if name == "" {
		name = "moa"
	}
	return a2a.AgentCard{
		Name:        name,
		Description: "Mixture-of-agents chain: layered model invocations with aggregation",
		Version:     version,
		URL:         url,
		Skills: []a2a.AgentSkill{{
			ID:          "run_chain",
			Name:        "Run chain",
			Description: "Answers a query by running every configured layer and returning the final aggregate",
			Tags:        []string{"llm", "mixture-of-agents"},
		}},
	}
}
