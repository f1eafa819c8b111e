package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/cmehul96/Foresight/internal/plan"
	"github.com/cmehul96/Foresight/internal/transcript"
)

// GeminiClient generates interview turns through the Gemini API.
type GeminiClient struct {
	APIKey string
	Model  string
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{APIKey: apiKey, Model: model}
}

func (g *GeminiClient) NextTurn(ctx context.Context, p plan.Plan, turns []transcript.Turn, language string) (Candidate, error) {
	if g.APIKey == "" {
		return Candidate{}, fmt.Errorf("gemini api key missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Candidate{}, fmt.Errorf("gemini: create client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(interviewerSystemPrompt(language), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"nextQuestionText": {Type: genai.TypeString},
				"theme":            {Type: genai.TypeString},
				"isProbing":        {Type: genai.TypeBoolean},
				"isEndOfInterview": {Type: genai.TypeBoolean},
			},
			Required: []string{"nextQuestionText", "theme", "isProbing", "isEndOfInterview"},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(BuildTurnPrompt(p, turns)), cfg)
	if err != nil {
		return Candidate{}, fmt.Errorf("gemini: generate: %w", err)
	}
	txt := resp.Text()
	if txt == "" {
		return Candidate{}, fmt.Errorf("gemini: empty reply")
	}
	return ParseCandidate(txt)
}
