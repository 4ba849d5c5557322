package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dermassist/dermassist/internal/models"
)

// Gemini provides an implementation of the transport interface backed
// by the Google generative language API.
type Gemini struct {
	apiKey       string
	model        string
	systemPrompt string
	endpoint     string

	client *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

const geminiAPIEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// NewGemini creates a Gemini transport for the given API key and model
// name. An empty endpoint selects the public API.
func NewGemini(apiKey, model, systemPrompt, endpoint string) Gemini {
	if endpoint == "" {
		endpoint = geminiAPIEndpoint
	}
	return Gemini{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		endpoint:     endpoint,
		client:       &http.Client{},
	}
}

// SendChat performs one non-streaming generateContent call carrying the
// conversation history and the new user message. The correlation id
// tags the reply so the push feed can be matched against it.
func (g Gemini) SendChat(ctx context.Context, correlationID string, history []models.Message, text string) (models.Reply, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Origin == models.OriginAssistant {
			role = "model"
		}
		if msg.Body == "" || msg.FailureNotice {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Body}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: text}},
	})

	reqBody := geminiGenerateRequest{Contents: contents}
	if g.systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.systemPrompt}}}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.Reply{}, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return models.Reply{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Reply{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Reply{}, fmt.Errorf("error reading response: %w", err)
	}

	var res geminiGenerateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return models.Reply{}, fmt.Errorf("error unmarshaling response: %w", err)
	}
	if res.Error != nil {
		return models.Reply{}, fmt.Errorf("gemini error %s: %s", res.Error.Status, res.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Reply{}, fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return models.Reply{}, fmt.Errorf("gemini returned no candidates")
	}

	var out bytes.Buffer
	for _, part := range res.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return parseReply(correlationID, out.String()), nil
}
