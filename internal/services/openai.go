package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/dermassist/dermassist/internal/models"
)

// OpenAI provides an implementation of the transport interface for
// OpenAI and OpenAI-compatible backends (a custom base URL covers
// relays such as OpenRouter).
type OpenAI struct {
	model        string
	systemPrompt string

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates an OpenAI transport. An empty baseURL selects the
// public API.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// SendChat performs one non-streaming chat completion. The correlation
// id is forwarded in the request user field so an echoing relay can tag
// its push feed with it.
func (o OpenAI) SendChat(ctx context.Context, correlationID string, history []models.Message, text string) (models.Reply, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	for _, msg := range history {
		if msg.Body == "" || msg.FailureNotice {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    historyRole(msg.Origin),
			Content: msg.Body,
		})
	}
	msgs = slices.Insert(msgs, 0, goopenai.ChatCompletionMessage{
		Role:    "system",
		Content: o.systemPrompt,
	})
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    "user",
		Content: text,
	})

	res, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
		User:     correlationID,
	})
	if err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}
	if len(res.Choices) == 0 {
		return models.Reply{}, fmt.Errorf("openai returned no choices")
	}

	o.logger.Debug("chat completion finished",
		slog.String("correlationID", correlationID),
		slog.Int("length", len(res.Choices[0].Message.Content)))

	return parseReply(correlationID, res.Choices[0].Message.Content), nil
}
