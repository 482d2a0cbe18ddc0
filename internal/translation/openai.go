package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultOpenAIModel is used when the credential does not name a model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider translates text through an OpenAI-compatible chat
// completions endpoint. Works against api.openai.com as well as local
// inference servers exposing the same surface.
type OpenAIProvider struct {
	endpointURL string
	model       string
	apiKey      string
	client      *http.Client
}

func NewOpenAIProvider(endpoint, model, apiKey string) *OpenAIProvider {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		endpointURL: chatCompletionsURL(endpoint),
		model:       trimmedModel,
		apiKey:      strings.TrimSpace(apiKey),
		client:      &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ModelName returns the configured model identifier.
func (p *OpenAIProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *OpenAIProvider) Translate(ctx context.Context, req Request) (*Response, error) {
	if p == nil {
		return nil, fmt.Errorf("openai provider is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if normalizeLangCode(req.TargetLang) == "" {
		return nil, fmt.Errorf("target language is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal translation request: %w", err)
	}

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build translation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send translation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ParseError{Reason: "response has no choices"}
	}

	translated := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if translated == "" {
		return nil, &ParseError{Reason: "choice content is empty"}
	}

	return &Response{
		Text:         translated,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func chatCompletionsURL(endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "https://api.openai.com/v1/chat/completions"
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return "https://api.openai.com/v1/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		parsed.Path = path
	case strings.HasSuffix(path, "/v1"):
		parsed.Path = path + "/chat/completions"
	case path == "":
		parsed.Path = "/v1/chat/completions"
	default:
		parsed.Path = path + "/v1/chat/completions"
	}

	return parsed.String()
}
