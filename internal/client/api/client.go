// Package api is the customer's HTTP client for the authority's query API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"tabify/internal/domain"
)

type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
	// MaxElapsed bounds retries of transient failures.
	MaxElapsed time.Duration
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{BaseURL: u, HTTP: httpClient, MaxElapsed: 3 * time.Second}, nil
}

// StatusError is a non-2xx answer from the authority.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("authority returned %d: %s", e.Code, e.Body)
}

// GetOrder fetches the canonical order. An unknown id yields domain.ErrNotFound.
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := c.getJSON(ctx, &o, "api", "orders", url.PathEscape(id)); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	if err := c.getJSON(ctx, &items, "api", "menu"); err != nil {
		return nil, err
	}
	return items, nil
}

// getJSON GETs the base URL joined with the already-escaped path segments.
func (c *Client) getJSON(ctx context.Context, out any, segments ...string) error {
	u := c.BaseURL.JoinPath(segments...)
	op := func() (struct{}, error) {
		return struct{}{}, c.do(ctx, u, out)
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.MaxElapsed),
	)
	return err
}

func (c *Client) do(ctx context.Context, u *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(domain.ErrNotFound)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return backoff.Permanent(&StatusError{Code: resp.StatusCode, Body: string(body)})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", u.Path, err))
	}
	return nil
}
