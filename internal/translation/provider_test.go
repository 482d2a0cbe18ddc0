package translation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiProviderParsesCandidate(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Hallo Welt.  "}]}}]}`))
	}))
	defer server.Close()

	provider := NewGeminiProviderWithEndpoint(server.URL, "key-1", "gemini-2.0-flash")
	resp, err := provider.Translate(context.Background(), Request{Text: "Hello world.", TargetLang: "de"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if resp.Text != "Hallo Welt." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if !strings.Contains(gotPath, "models/gemini-2.0-flash:generateContent") || !strings.Contains(gotPath, "key=key-1") {
		t.Fatalf("unexpected request path: %q", gotPath)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", gotBody)
	}
	if !strings.Contains(gotBody.Contents[0].Parts[0].Text, "Hello world.") {
		t.Fatalf("prompt does not carry the source text")
	}
}

func TestGeminiProviderMapsFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "http error",
			status: http.StatusForbidden,
			body:   `{"error":{"message":"key expired"}}`,
			check: func(err error) bool {
				var httpErr *HTTPError
				return errors.As(err, &httpErr) && httpErr.Status == http.StatusForbidden
			},
		},
		{
			name:   "empty candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			check: func(err error) bool {
				var parseErr *ParseError
				return errors.As(err, &parseErr)
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `{"candidates":`,
			check: func(err error) bool {
				var parseErr *ParseError
				return errors.As(err, &parseErr)
			},
		},
		{
			name:   "blank candidate text",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`,
			check: func(err error) bool {
				var parseErr *ParseError
				return errors.As(err, &parseErr)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := NewGeminiProviderWithEndpoint(server.URL, "key", "")
			_, err := provider.Translate(context.Background(), Request{Text: "x", TargetLang: "es"})
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpenAIProviderParsesChoice(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Ciao mondo."}}]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-model", "sk-test")
	resp, err := provider.Translate(context.Background(), Request{Text: "Hello world.", TargetLang: "it"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if resp.Text != "Ciao mondo." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestOpenAIProviderRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "", "")
	_, err := provider.Translate(context.Background(), Request{Text: "x", TargetLang: "es"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestChatCompletionsURL(t *testing.T) {
	t.Parallel()

	if got := chatCompletionsURL("http://127.0.0.1:8845/v1"); got != "http://127.0.0.1:8845/v1/chat/completions" {
		t.Fatalf("unexpected url: %q", got)
	}
	if got := chatCompletionsURL(""); got != "https://api.openai.com/v1/chat/completions" {
		t.Fatalf("unexpected default url: %q", got)
	}
	if got := chatCompletionsURL("localhost:9000"); got != "http://localhost:9000/v1/chat/completions" {
		t.Fatalf("unexpected url: %q", got)
	}
}

func TestIsSupportedLanguage(t *testing.T) {
	t.Parallel()

	if !IsSupportedLanguage("ES") {
		t.Fatalf("expected ES to normalize to a supported language")
	}
	if !IsSupportedLanguage("pt-BR") {
		t.Fatalf("expected pt-BR to fall back to pt")
	}
	if IsSupportedLanguage("xx") {
		t.Fatalf("did not expect xx to be supported")
	}
}
