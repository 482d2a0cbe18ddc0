package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultGeminiEndpoint is the generativelanguage REST base URL.
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when no model override is configured.
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiProvider translates text through the Google generative language API.
// One provider instance wraps one API key; the invoker holds several in
// fallback order.
type GeminiProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return NewGeminiProviderWithEndpoint(DefaultGeminiEndpoint, apiKey, model)
}

func NewGeminiProviderWithEndpoint(endpoint, apiKey, model string) *GeminiProvider {
	trimmedEndpoint := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmedEndpoint == "" {
		trimmedEndpoint = DefaultGeminiEndpoint
	}
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultGeminiModel
	}
	return &GeminiProvider{
		endpoint: trimmedEndpoint,
		model:    trimmedModel,
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{},
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// ModelName returns the configured model identifier.
func (p *GeminiProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *GeminiProvider) Translate(ctx context.Context, req Request) (*Response, error) {
	if p == nil {
		return nil, fmt.Errorf("gemini provider is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if normalizeLangCode(req.TargetLang) == "" {
		return nil, fmt.Errorf("target language is required")
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildPrompt(req)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal translation request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.endpoint, p.model, p.apiKey)
	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build translation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Reason: "response has no candidates"}
	}

	translated := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if translated == "" {
		return nil, &ParseError{Reason: "candidate text is empty"}
	}

	return &Response{
		Text:         translated,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
