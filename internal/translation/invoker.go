package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presslate/internal/config"
)

const (
	// DefaultTitleTimeout bounds provider calls for short title strings.
	DefaultTitleTimeout = 25 * time.Second
	// DefaultBodyTimeout bounds provider calls for body chunks.
	DefaultBodyTimeout = 90 * time.Second
)

// InvokerOptions tunes per-call behaviour.
type InvokerOptions struct {
	TitleTimeout time.Duration
	BodyTimeout  time.Duration
	Logger       zerolog.Logger
}

// Invoker sends one chunk at a time to an ordered list of providers,
// advancing to the next credential on any failure within the same logical
// call. No shared state is mutated between calls.
type Invoker struct {
	providers    []Provider
	titleTimeout time.Duration
	bodyTimeout  time.Duration
	logger       zerolog.Logger
}

func NewInvoker(providers []Provider, opts InvokerOptions) (*Invoker, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one translation provider is required")
	}
	titleTimeout := opts.TitleTimeout
	if titleTimeout <= 0 {
		titleTimeout = DefaultTitleTimeout
	}
	bodyTimeout := opts.BodyTimeout
	if bodyTimeout <= 0 {
		bodyTimeout = DefaultBodyTimeout
	}
	return &Invoker{
		providers:    providers,
		titleTimeout: titleTimeout,
		bodyTimeout:  bodyTimeout,
		logger:       opts.Logger,
	}, nil
}

// NewInvokerFromConfig builds providers for every configured credential, in
// the configured fallback order.
func NewInvokerFromConfig(cfg *config.Config, logger zerolog.Logger) (*Invoker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	providers, err := ProvidersFromCredentials(cfg.Credentials())
	if err != nil {
		return nil, err
	}
	return NewInvoker(providers, InvokerOptions{
		TitleTimeout: cfg.TitleTimeout,
		BodyTimeout:  cfg.BodyTimeout,
		Logger:       logger,
	})
}

// ProvidersFromCredentials maps ordered credentials to provider instances.
func ProvidersFromCredentials(creds []config.Credential) ([]Provider, error) {
	providers := make([]Provider, 0, len(creds))
	for _, cred := range creds {
		switch strings.ToLower(strings.TrimSpace(cred.Kind)) {
		case "gemini":
			providers = append(providers, NewGeminiProvider(cred.APIKey, cred.Model))
		case "openai":
			providers = append(providers, NewOpenAIProvider(cred.Endpoint, cred.Model, cred.APIKey))
		default:
			return nil, fmt.Errorf("unknown credential kind %q", cred.Kind)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no translation credentials configured")
	}
	return providers, nil
}

// Translate sends text through the credential chain until one provider
// succeeds. Failures switch to the next credential immediately; this is
// fallback within one logical call, not scheduled retry. When the chain is
// exhausted the call fails with ExhaustedError carrying the last failure.
func (inv *Invoker) Translate(ctx context.Context, text, targetLang string, title bool) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("invoker is not initialized")
	}
	targetLang = normalizeLangCode(targetLang)
	if targetLang == "" {
		return "", fmt.Errorf("target language is required")
	}

	req := Request{
		Text:       prepareSourceText(text),
		TargetLang: targetLang,
		Title:      title,
	}
	if req.Text == "" {
		return "", nil
	}

	timeout := inv.bodyTimeout
	if title {
		timeout = inv.titleTimeout
	}

	var lastErr error
	for index, provider := range inv.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := provider.Translate(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			inv.logger.Warn().
				Err(err).
				Int("credential_index", index).
				Str("provider", provider.Name()).
				Bool("network", IsNetworkError(err)).
				Msg("translation credential failed, falling back")
			continue
		}

		translated := resp.Text
		if !title {
			translated = ensureTerminalPunctuation(translated)
		}
		return translated, nil
	}

	return "", &ExhaustedError{Attempts: len(inv.providers), Last: lastErr}
}
