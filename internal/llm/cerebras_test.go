package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmehul96/Foresight/internal/plan"
)

func testPlan() plan.Plan {
	return plan.Plan{Themes: []plan.Theme{{Name: "Onboarding", Questions: []string{"How did you find our app?"}}}}
}

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.NextTurn(ctx, testPlan(), nil, "en"); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewCerebrasClient("key", "model")
			c.HTTPClient = &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				req.URL.Scheme = "http"
				req.URL.Host = srv.Listener.Addr().String()
				return http.DefaultTransport.RoundTrip(req)
			})}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.NextTurn(ctx, testPlan(), nil, "en"); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_ParsesCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"nextQuestionText\":\"How did you find our app?\",\"theme\":\"Onboarding\",\"isProbing\":false,\"isEndOfInterview\":false}"}}]}`))
	}))
	defer srv.Close()
	c := NewCerebrasClient("key", "model")
	c.HTTPClient = &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
	got, err := c.NextTurn(context.Background(), testPlan(), nil, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Question != "How did you find our app?" || got.Theme != "Onboarding" || got.Probing || got.EndOfInterview {
		t.Fatalf("unexpected candidate: %+v", got)
	}
}

func TestParseCandidate_Fenced(t *testing.T) {
	raw := "```json\n{\"nextQuestionText\":\"Why?\",\"theme\":\"Usage\",\"isProbing\":true,\"isEndOfInterview\":false}\n```"
	c, err := ParseCandidate(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Question != "Why?" || !c.Probing {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestParseCandidate_ProseWrapped(t *testing.T) {
	raw := `Here you go: {"nextQuestionText":"Why?","theme":"Usage","isProbing":false,"isEndOfInterview":true} hope that helps`
	c, err := ParseCandidate(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.EndOfInterview {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}

func TestParseCandidate_NoObject(t *testing.T) {
	if _, err := ParseCandidate("nothing useful here"); err == nil {
		t.Fatalf("expected error")
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
