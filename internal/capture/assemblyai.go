package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssemblyAIBatch transcribes a complete audio payload via the AssemblyAI
// upload + transcript APIs: upload the WAV, create a transcript job, poll
// until it settles.
type AssemblyAIBatch struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string
	// PollInterval between job status checks.
	PollInterval time.Duration
}

func NewAssemblyAIBatch(apiKey string) *AssemblyAIBatch {
	return &AssemblyAIBatch{
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		APIKey:       apiKey,
		BaseURL:      "https://api.assemblyai.com/v2",
		PollInterval: time.Second,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe uploads the payload and polls the job until completion. Honors
// ctx for the whole round trip.
func (a *AssemblyAIBatch) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("assemblyai: api key missing")
	}
	if len(wav) == 0 {
		return "", fmt.Errorf("assemblyai: empty audio payload")
	}

	audioURL, err := a.upload(ctx, wav)
	if err != nil {
		return "", err
	}
	id, err := a.createJob(ctx, audioURL, language)
	if err != nil {
		return "", err
	}
	return a.poll(ctx, id)
}

func (a *AssemblyAIBatch) upload(ctx context.Context, wav []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/upload", bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assemblyai: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assemblyai: upload status=%d body=%s", resp.StatusCode, string(b))
	}
	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("assemblyai: upload decode: %w", err)
	}
	if ur.UploadURL == "" {
		return "", fmt.Errorf("assemblyai: upload returned no url")
	}
	return ur.UploadURL, nil
}

func (a *AssemblyAIBatch) createJob(ctx context.Context, audioURL, language string) (string, error) {
	body, _ := json.Marshal(transcriptRequest{AudioURL: audioURL, LanguageCode: language})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assemblyai: create transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assemblyai: create transcript status=%d body=%s", resp.StatusCode, string(b))
	}
	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("assemblyai: create decode: %w", err)
	}
	if tr.ID == "" {
		return "", fmt.Errorf("assemblyai: create returned no id")
	}
	return tr.ID, nil
}

func (a *AssemblyAIBatch) poll(ctx context.Context, id string) (string, error) {
	interval := a.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/transcript/"+id, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", a.APIKey)
		resp, err := a.HTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("assemblyai: poll: %w", err)
		}
		var tr transcriptResponse
		derr := json.NewDecoder(resp.Body).Decode(&tr)
		resp.Body.Close()
		if derr != nil {
			return "", fmt.Errorf("assemblyai: poll decode: %w", derr)
		}
		switch tr.Status {
		case "completed":
			return tr.Text, nil
		case "error":
			return "", fmt.Errorf("assemblyai: transcription failed: %s", tr.Error)
		}
	}
}
