package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/ollama/ollama/api"

	"github.com/dermassist/dermassist/internal/models"
)

// Ollama provides an implementation of the transport interface for
// locally hosted models behind an Ollama server.
type Ollama struct {
	model        string
	systemPrompt string

	client *api.Client
}

// NewOllama creates an Ollama transport for the given host URL and
// model name. An invalid host URL panics, matching the api client's
// own construction contract.
func NewOllama(host, model, systemPrompt string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
	}
}

// SendChat performs one non-streaming chat call against the Ollama
// server and returns the complete reply.
func (o Ollama) SendChat(ctx context.Context, correlationID string, history []models.Message, text string) (models.Reply, error) {
	msgs := make([]api.Message, 0, len(history)+2)
	for _, msg := range history {
		if msg.Body == "" || msg.FailureNotice {
			continue
		}
		msgs = append(msgs, api.Message{
			Role:    historyRole(msg.Origin),
			Content: msg.Body,
		})
	}
	msgs = slices.Insert(msgs, 0, api.Message{
		Role:    "system",
		Content: o.systemPrompt,
	})
	msgs = append(msgs, api.Message{
		Role:    "user",
		Content: text,
	})

	stream := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var out string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		out = res.Message.Content
		return nil
	}); err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}

	return parseReply(correlationID, out), nil
}
