package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL:     baseURL,
		Username:    "editor",
		AppPassword: "abcd efgh ijkl",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchItemDecodesPost(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wp/v2/posts/41" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "editor" || pass != "abcd efgh ijkl" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}
		_, _ = w.Write([]byte(`{
			"id": 41,
			"slug": "spring-recipes",
			"link": "https://example.com/spring-recipes",
			"title": {"rendered": "Spring Recipes"},
			"content": {"rendered": "<p>Body</p>"},
			"categories": [3, 9],
			"tags": [12],
			"featured_media": 77,
			"meta": {"site_language": "en"}
		}`))
	}))
	defer server.Close()

	item, err := newTestClient(t, server.URL).FetchItem(context.Background(), 41)
	if err != nil {
		t.Fatalf("fetch item: %v", err)
	}
	if item.ID != 41 || item.Title != "Spring Recipes" || item.Body != "<p>Body</p>" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if len(item.Categories) != 2 || item.Categories[0] != 3 {
		t.Fatalf("unexpected categories: %v", item.Categories)
	}
	if item.FeaturedMedia != 77 {
		t.Fatalf("unexpected featured media: %d", item.FeaturedMedia)
	}
}

func TestPublishSendsStatusPublishAndReturnsID(t *testing.T) {
	t.Parallel()

	var got createRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/wp-json/wp/v2/posts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode create request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 88}`))
	}))
	defer server.Close()

	id, err := newTestClient(t, server.URL).Publish(context.Background(), NewItem{
		Title:      "Recetas de primavera",
		Body:       "<p>Cuerpo</p>",
		Slug:       "spring-recipes-es",
		Categories: []int64{3, 9},
		Tags:       []int64{12},
		Meta:       map[string]any{"site_language": "es"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id != 88 {
		t.Fatalf("unexpected new item id: %d", id)
	}
	if got.Status != "publish" {
		t.Fatalf("unexpected status: %q", got.Status)
	}
	if got.Slug != "spring-recipes-es" {
		t.Fatalf("unexpected slug: %q", got.Slug)
	}
	if got.Meta["site_language"] != "es" {
		t.Fatalf("language marker missing from meta: %v", got.Meta)
	}
}

func TestPublishMapsRejectionToPublishError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"rest_invalid_param"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Publish(context.Background(), NewItem{Title: "x"})
	var publishErr *PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if publishErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", publishErr.Status)
	}
}

func TestTranslatedSlug(t *testing.T) {
	t.Parallel()

	if got := TranslatedSlug("spring-recipes", "ES"); got != "spring-recipes-es" {
		t.Fatalf("unexpected slug: %q", got)
	}
	if got := TranslatedSlug("post-", "pt-BR"); got != "post-pt" {
		t.Fatalf("unexpected slug: %q", got)
	}
	if got := TranslatedSlug("", "de"); got != "de" {
		t.Fatalf("unexpected slug: %q", got)
	}
}
