package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmehul96/Foresight/internal/plan"
	"github.com/cmehul96/Foresight/internal/transcript"
)

type CerebrasClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		APIKey:     apiKey,
		Model:      model,
	}
}

// NextTurn asks the chat-completions endpoint for the next interview turn.
// The response must be a single JSON object matching Candidate.
func (c *CerebrasClient) NextTurn(ctx context.Context, p plan.Plan, turns []transcript.Turn, language string) (Candidate, error) {
	if c.APIKey == "" {
		return Candidate{}, fmt.Errorf("cerebras api key missing")
	}
	endpoint := "https://api.cerebras.ai/v1/chat/completions"

	messages := []chatMessage{
		{Role: "system", Content: interviewerSystemPrompt(language)},
		{Role: "user", Content: BuildTurnPrompt(p, turns)},
	}

	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: messages})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Candidate{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Candidate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Candidate{}, fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Candidate{}, err
	}
	if len(cr.Choices) == 0 {
		return Candidate{}, fmt.Errorf("cerebras: empty choices")
	}
	return ParseCandidate(cr.Choices[0].Message.Content)
}

func interviewerSystemPrompt(language string) string {
	return "You are a user researcher conducting a voice interview in language '" + language + "'. " +
		"Given the research plan and the transcript so far, decide the next thing the interviewer says. " +
		"Prefer the next unasked planned question; ask a short probing follow-up only when the last answer " +
		"clearly deserves one. When every theme is covered, close the interview warmly. " +
		"Respond with a single JSON object and nothing else: " +
		`{"nextQuestionText": string, "theme": string, "isProbing": bool, "isEndOfInterview": bool}`
}

// BuildTurnPrompt renders the plan and transcript into the user prompt shared
// by all generator backends.
func BuildTurnPrompt(p plan.Plan, turns []transcript.Turn) string {
	var b strings.Builder
	b.WriteString("Research plan:\n")
	for _, th := range p.Themes {
		b.WriteString("- ")
		b.WriteString(th.Name)
		b.WriteString(":\n")
		for _, q := range th.Questions {
			b.WriteString("  - ")
			b.WriteString(q)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nTranscript so far:\n")
	if len(turns) == 0 {
		b.WriteString("(empty - the interview has not started)\n")
	} else {
		b.WriteString(transcript.Render(turns))
	}
	return b.String()
}

// ParseCandidate decodes a model reply into a Candidate, tolerating markdown
// code fences around the JSON object.
func ParseCandidate(raw string) (Candidate, error) {
	txt := strings.TrimSpace(raw)
	if strings.HasPrefix(txt, "```") {
		txt = strings.TrimPrefix(txt, "```json")
		txt = strings.TrimPrefix(txt, "```")
		txt = strings.TrimSuffix(strings.TrimSpace(txt), "```")
		txt = strings.TrimSpace(txt)
	}
	// Fall back to the outermost braces when the model wraps the object in prose.
	if !strings.HasPrefix(txt, "{") {
		start := strings.Index(txt, "{")
		end := strings.LastIndex(txt, "}")
		if start < 0 || end <= start {
			return Candidate{}, fmt.Errorf("candidate: no JSON object in reply")
		}
		txt = txt[start : end+1]
	}
	var c Candidate
	if err := json.Unmarshal([]byte(txt), &c); err != nil {
		return Candidate{}, fmt.Errorf("candidate: decode: %w", err)
	}
	c.Question = strings.TrimSpace(c.Question)
	c.Theme = strings.TrimSpace(c.Theme)
	return c, nil
}
