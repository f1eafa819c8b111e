package transcript

import (
	"fmt"
	"strings"
	"sync"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	Agent       Speaker = "AGENT"
	Participant Speaker = "PARTICIPANT"
)

// Turn is one utterance by either party. Once appended to a Store it is
// never mutated.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Theme   string  `json:"theme,omitempty"`
	Text    string  `json:"text"`
	Probing bool    `json:"isProbing,omitempty"`
}

// Store is an append-only ordered sequence of turns. It is the single source
// of truth for what has been said by either party; order reflects causal
// order of the conversation.
type Store struct {
	mu    sync.Mutex
	turns []Turn
}

func NewStore() *Store { return &Store{} }

// Append adds one turn at the end of the sequence.
func (s *Store) Append(t Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current sequence. The copy is safe to hand
// to collaborators; later appends do not affect it.
func (s *Store) Snapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Turn, len(s.turns))
	copy(cp, s.turns)
	return cp
}

// Len reports the number of appended turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// HasAgentText reports whether the exact text has already been spoken by the
// agent. The comparison is deliberately case- and whitespace-sensitive: exact
// text identity is the sole de-duplication mechanism for planned questions.
func (s *Store) HasAgentText(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.turns {
		if t.Speaker == Agent && t.Text == text {
			return true
		}
	}
	return false
}

// Render formats turns as labeled lines for prompting, oldest first.
func Render(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s\n", t.Speaker, t.Text)
	}
	return b.String()
}
