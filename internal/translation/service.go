package translation

import "context"

// Provider translates one chunk of text into a target language.
type Provider interface {
	Translate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Request describes one provider call.
type Request struct {
	Text       string
	TargetLang string // ISO 639-1 (for example: "es", "de")
	Title      bool   // titles get single-line framing, bodies paragraph framing
}

// Response contains the translated text and provider metadata.
type Response struct {
	Text         string
	ProviderName string
	LatencyMs    int64
}
