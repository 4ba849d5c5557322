package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dermassist/dermassist/internal/reconcile"
	"github.com/dermassist/dermassist/internal/services"
)

type llmConfig interface {
	transport(systemPrompt string, logger *slog.Logger) (reconcile.Transport, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string        `yaml:"port"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Greeting     string        `yaml:"greeting"`
	PushFeedURL  string        `yaml:"pushFeedURL"`
	ArchivePath  string        `yaml:"archivePath"`
	ReplyWindow  time.Duration `yaml:"replyWindow"`
	ReplyTimeout time.Duration `yaml:"replyTimeout"`
	LLM          llmConfig     `yaml:"llm"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

type openaiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string         `yaml:"port"`
		SystemPrompt string         `yaml:"systemPrompt"`
		Greeting     string         `yaml:"greeting"`
		PushFeedURL  string         `yaml:"pushFeedURL"`
		ArchivePath  string         `yaml:"archivePath"`
		ReplyWindow  string         `yaml:"replyWindow"`
		ReplyTimeout string         `yaml:"replyTimeout"`
		LLM          map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Greeting = rawConfig.Greeting
	c.PushFeedURL = rawConfig.PushFeedURL
	c.ArchivePath = rawConfig.ArchivePath

	// Durations are written in the natural "30s" form.
	if rawConfig.ReplyWindow != "" {
		d, err := time.ParseDuration(rawConfig.ReplyWindow)
		if err != nil {
			return fmt.Errorf("invalid replyWindow: %w", err)
		}
		c.ReplyWindow = d
	}
	if rawConfig.ReplyTimeout != "" {
		d, err := time.ParseDuration(rawConfig.ReplyTimeout)
		if err != nil {
			return fmt.Errorf("invalid replyTimeout: %w", err)
		}
		c.ReplyTimeout = d
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "openai":
		llm = &openaiConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func (g geminiConfig) transport(systemPrompt string, _ *slog.Logger) (reconcile.Transport, error) {
	if g.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	return services.NewGemini(apiKey, g.Model, systemPrompt, g.Endpoint), nil
}

func (o openaiConfig) transport(systemPrompt string, logger *slog.Logger) (reconcile.Transport, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, logger), nil
}

func (o ollamaConfig) transport(systemPrompt string, _ *slog.Logger) (reconcile.Transport, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt), nil
}
