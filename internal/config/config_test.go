package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("INTERVIEW_LANGUAGE", "")
	os.Setenv("GENERATOR_BACKEND", "")
	os.Setenv("CEREBRAS_MODEL_ID", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.Language != "en" {
		t.Fatalf("expected default language en, got %q", cfg.Language)
	}
	if cfg.Generator != "cerebras" {
		t.Fatalf("expected default generator cerebras, got %q", cfg.Generator)
	}
	if cfg.CerebrasModelID == "" {
		t.Fatalf("expected default cerebras model id")
	}
}

func TestLoad_GeneratorOverride(t *testing.T) {
	os.Setenv("GENERATOR_BACKEND", "gemini")
	defer os.Unsetenv("GENERATOR_BACKEND")
	cfg := Load()
	if cfg.Generator != "gemini" {
		t.Fatalf("expected gemini, got %q", cfg.Generator)
	}
	if cfg.GeminiModelID == "" {
		t.Fatalf("expected default gemini model id")
	}
}
