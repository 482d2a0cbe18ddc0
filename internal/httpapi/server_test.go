package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/presslate/internal/auth"
	"horse.fit/presslate/internal/batch"
	"horse.fit/presslate/internal/wordpress"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type stubFetcher struct {
	items map[int64]wordpress.Item
}

func (s *stubFetcher) FetchItem(_ context.Context, id int64) (*wordpress.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, &wordpress.PublishError{Status: 404, Body: "not found"}
	}
	return &item, nil
}

type instantTranslator struct{}

func (instantTranslator) Translate(_ context.Context, text, _ string, _ bool) (string, error) {
	return "T:" + text, nil
}

type instantPublisher struct{}

func (instantPublisher) Publish(_ context.Context, _ wordpress.NewItem) (int64, error) {
	return 900, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	fetcher := &stubFetcher{items: map[int64]wordpress.Item{
		41: {ID: 41, Title: "Hello", Body: "<p>World.</p>", Slug: "hello"},
	}}
	return NewServer(fetcher, instantTranslator{}, instantPublisher{}, nil, batch.Options{
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
	}, testLogger(), opts)
}

func TestStartRunAndPollDetail(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, Options{})
	e := server.newEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"item_ids":[41],"target_lang":"es"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var started runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if started.RunUUID == "" {
		t.Fatalf("missing run uuid")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		detailReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+started.RunUUID, nil)
		detailRec := httptest.NewRecorder()
		e.ServeHTTP(detailRec, detailReq)
		if detailRec.Code != http.StatusOK {
			t.Fatalf("unexpected detail status: %d", detailRec.Code)
		}

		var detail runResponse
		if err := json.Unmarshal(detailRec.Body.Bytes(), &detail); err != nil {
			t.Fatalf("decode detail: %v", err)
		}
		if detail.Summary.State == batch.StateCompleted {
			if detail.Summary.Succeeded != 1 || detail.Summary.Progress != 100 {
				t.Fatalf("unexpected completed summary: %+v", detail.Summary)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete in time, last summary: %+v", detail.Summary)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartRunRejectsInvalidManifest(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, Options{})
	e := server.newEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"item_ids":[],"target_lang":"es"}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestCancelUnknownRunReturnsNotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, Options{})
	e := server.newEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/nope/cancel", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, Options{})
	e := server.newEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"es"`) {
		t.Fatalf("expected es in language list: %s", rec.Body.String())
	}
}

func TestBasicAuthGuardsAPI(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("verysecret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	server := newTestServer(t, Options{Username: "ops", PasswordHash: hash})
	e := server.newEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	authedReq := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	authedReq.SetBasicAuth("ops", "verysecret")
	authedRec := httptest.NewRecorder()
	e.ServeHTTP(authedRec, authedReq)
	if authedRec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", authedRec.Code)
	}
}
