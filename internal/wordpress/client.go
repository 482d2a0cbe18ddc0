// Package wordpress is the content-host boundary: fetching source items and
// publishing translated copies over the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"horse.fit/presslate/internal/language"
)

const (
	DefaultReadTimeout  = 20 * time.Second
	DefaultWriteTimeout = 60 * time.Second
)

// Item is one content item as fetched from the host. Immutable once handed
// to the orchestrator.
type Item struct {
	ID            int64
	Title         string
	Body          string
	Slug          string
	Categories    []int64
	Tags          []int64
	FeaturedMedia int64
	Meta          map[string]any
	Link          string
}

// NewItem is a translated item ready to publish.
type NewItem struct {
	Title         string
	Body          string
	Slug          string
	Excerpt       string
	Categories    []int64
	Tags          []int64
	FeaturedMedia int64
	Meta          map[string]any
}

// PublishError is a host rejection of a write.
type PublishError struct {
	Status int
	Body   string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("content host rejected publish with status %d: %s", e.Status, e.Body)
}

// Options configures the host connection.
type Options struct {
	BaseURL      string
	Username     string
	AppPassword  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client talks to one WordPress site with basic credential authentication.
// Reads use a short timeout, writes a longer one.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	readClient  *http.Client
	writeClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(opts.Username) == "" || strings.TrimSpace(opts.AppPassword) == "" {
		return nil, fmt.Errorf("username and application password are required")
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	return &Client{
		baseURL:     baseURL,
		username:    strings.TrimSpace(opts.Username),
		appPassword: strings.TrimSpace(opts.AppPassword),
		readClient:  &http.Client{Timeout: readTimeout},
		writeClient: &http.Client{Timeout: writeTimeout},
	}, nil
}

// FetchItem loads one item by id, including slug, category and tag
// identifiers, the featured-media reference, and the metadata map.
func (c *Client) FetchItem(ctx context.Context, id int64) (*Item, error) {
	if c == nil {
		return nil, fmt.Errorf("client is not initialized")
	}

	url := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d?context=edit", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fetch response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch item %d: status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload postPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode item %d: %w", id, err)
	}

	return &Item{
		ID:            payload.ID,
		Title:         payload.Title.Rendered,
		Body:          payload.Content.Rendered,
		Slug:          payload.Slug,
		Categories:    payload.Categories,
		Tags:          payload.Tags,
		FeaturedMedia: payload.FeaturedMedia,
		Meta:          payload.Meta,
		Link:          payload.Link,
	}, nil
}

// Publish creates a new published item and returns its identifier.
func (c *Client) Publish(ctx context.Context, item NewItem) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("client is not initialized")
	}

	body, err := json.Marshal(createRequest{
		Title:         item.Title,
		Content:       item.Body,
		Excerpt:       item.Excerpt,
		Status:        "publish",
		Slug:          item.Slug,
		Categories:    item.Categories,
		Tags:          item.Tags,
		FeaturedMedia: item.FeaturedMedia,
		Meta:          item.Meta,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal publish request: %w", err)
	}

	url := c.baseURL + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.appPassword)

	resp, err := c.writeClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("publish item: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read publish response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &PublishError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var payload postPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return 0, fmt.Errorf("decode publish response: %w", err)
	}
	if payload.ID == 0 {
		return 0, fmt.Errorf("publish response carries no item id")
	}
	return payload.ID, nil
}

// TranslatedSlug suffixes the original slug with the lowercase language code.
func TranslatedSlug(slug, targetLang string) string {
	code := language.NormalizeCode(targetLang)
	slug = strings.Trim(strings.TrimSpace(slug), "-")
	if code == "" {
		return slug
	}
	if slug == "" {
		return code
	}
	return slug + "-" + code
}

type renderedField struct {
	Rendered string `json:"rendered"`
}

func (f *renderedField) UnmarshalJSON(data []byte) error {
	// context=edit returns {"rendered": ..., "raw": ...}; plain contexts may
	// return a bare string.
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		f.Rendered = text
		return nil
	}

	var obj struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Rendered = obj.Rendered
	return nil
}

type postPayload struct {
	ID            int64          `json:"id"`
	Slug          string         `json:"slug"`
	Link          string         `json:"link"`
	Title         renderedField  `json:"title"`
	Content       renderedField  `json:"content"`
	Categories    []int64        `json:"categories"`
	Tags          []int64        `json:"tags"`
	FeaturedMedia int64          `json:"featured_media"`
	Meta          map[string]any `json:"meta"`
}

type createRequest struct {
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Excerpt       string         `json:"excerpt,omitempty"`
	Status        string         `json:"status"`
	Slug          string         `json:"slug"`
	Categories    []int64        `json:"categories,omitempty"`
	Tags          []int64        `json:"tags,omitempty"`
	FeaturedMedia int64          `json:"featured_media,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}
