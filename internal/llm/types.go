package llm

import (
	"context"

	"github.com/cmehul96/Foresight/internal/plan"
	"github.com/cmehul96/Foresight/internal/transcript"
)

// Candidate is the service's proposed next agent turn, before validation and
// repair by the session.
type Candidate struct {
	Question       string `json:"nextQuestionText"`
	Theme          string `json:"theme"`
	Probing        bool   `json:"isProbing"`
	EndOfInterview bool   `json:"isEndOfInterview"`
}

// Generator produces the next agent turn from the plan and the transcript so
// far. A single attempt per turn: callers never retry a failed generation.
type Generator interface {
	NextTurn(ctx context.Context, p plan.Plan, turns []transcript.Turn, language string) (Candidate, error)
}
