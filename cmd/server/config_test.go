package main

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestConfigDecodesDurations(t *testing.T) {
	raw := `
port: "8080"
greeting: "Hello!"
replyWindow: 30s
replyTimeout: 1m30s
llm:
  provider: gemini
  model: gemini-1.5-pro
  apiKey: test-key
`
	var cfg config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if cfg.ReplyWindow != 30*time.Second {
		t.Errorf("ReplyWindow = %v, want 30s", cfg.ReplyWindow)
	}
	if cfg.ReplyTimeout != 90*time.Second {
		t.Errorf("ReplyTimeout = %v, want 1m30s", cfg.ReplyTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}

	if _, ok := cfg.LLM.(*geminiConfig); !ok {
		t.Errorf("LLM decoded as %T, want *geminiConfig", cfg.LLM)
	}
}

func TestConfigDurationsOptional(t *testing.T) {
	raw := `
port: "8080"
llm:
  provider: ollama
  model: llama3
`
	var cfg config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.ReplyWindow != 0 || cfg.ReplyTimeout != 0 {
		t.Errorf("unset durations = %v, %v; want zero values", cfg.ReplyWindow, cfg.ReplyTimeout)
	}
}

func TestConfigRejectsBadDuration(t *testing.T) {
	raw := `
replyWindow: soon
llm:
  provider: ollama
  model: llama3
`
	var cfg config
	err := yaml.Unmarshal([]byte(raw), &cfg)
	if err == nil || !strings.Contains(err.Error(), "replyWindow") {
		t.Fatalf("Unmarshal() error = %v, want a replyWindow parse error", err)
	}
}

func TestConfigRejectsUnknownProvider(t *testing.T) {
	raw := `
llm:
  provider: bard
`
	var cfg config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err == nil {
		t.Fatal("Unmarshal() accepted an unknown provider")
	}
}
