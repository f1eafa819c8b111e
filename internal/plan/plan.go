package plan

import (
	"github.com/cmehul96/Foresight/internal/transcript"
)

// Theme groups an ordered list of planned questions.
type Theme struct {
	Name      string   `json:"theme"`
	Questions []string `json:"questions"`
}

// Plan is the immutable research plan supplied at session start: themes in
// declared order, questions in declared order within each theme.
type Plan struct {
	Themes []Theme `json:"themes"`
}

// Question is one planned question paired with its theme.
type Question struct {
	Theme string
	Text  string
}

// NextUnasked scans themes and questions in declared order and returns the
// first question whose exact text does not yet appear as an AGENT turn. The
// match is case- and whitespace-sensitive on purpose; see transcript.Store.
// Returns nil when the plan is exhausted.
func (p Plan) NextUnasked(store *transcript.Store) *Question {
	for _, th := range p.Themes {
		for _, q := range th.Questions {
			if !store.HasAgentText(q) {
				return &Question{Theme: th.Name, Text: q}
			}
		}
	}
	return nil
}

// TotalQuestions counts planned questions across all themes.
func (p Plan) TotalQuestions() int {
	n := 0
	for _, th := range p.Themes {
		n += len(th.Questions)
	}
	return n
}

// Empty reports whether the plan carries no questions at all.
func (p Plan) Empty() bool { return p.TotalQuestions() == 0 }
