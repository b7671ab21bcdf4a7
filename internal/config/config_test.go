package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("SILENCE_THRESHOLD_MS", "")
	os.Setenv("MIN_ANSWER_LENGTH", "")
	os.Setenv("OPENAI_MODEL_ID", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.SilenceThreshold != 1500*time.Millisecond {
		t.Fatalf("expected default silence threshold, got %v", cfg.SilenceThreshold)
	}
	if cfg.MinAnswerLength != 10 {
		t.Fatalf("expected default min answer length, got %d", cfg.MinAnswerLength)
	}
	if cfg.OpenAIModelID != "gpt-4o-mini" {
		t.Fatalf("expected default openai model id, got %s", cfg.OpenAIModelID)
	}
}

func TestLoad_ClampsTunables(t *testing.T) {
	os.Setenv("SILENCE_THRESHOLD_MS", "100")
	os.Setenv("MIN_ANSWER_LENGTH", "50")
	defer os.Unsetenv("SILENCE_THRESHOLD_MS")
	defer os.Unsetenv("MIN_ANSWER_LENGTH")
	cfg := Load()
	if cfg.SilenceThreshold != 500*time.Millisecond {
		t.Fatalf("expected silence threshold clamped to 500ms, got %v", cfg.SilenceThreshold)
	}
	if cfg.MinAnswerLength != 20 {
		t.Fatalf("expected min answer length clamped to 20, got %d", cfg.MinAnswerLength)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	os.Setenv("SILENCE_THRESHOLD_MS", "soon")
	defer os.Unsetenv("SILENCE_THRESHOLD_MS")
	cfg := Load()
	if cfg.SilenceThreshold != 1500*time.Millisecond {
		t.Fatalf("expected fallback silence threshold, got %v", cfg.SilenceThreshold)
	}
}
