// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxErrorBodySize limits how much of an error response body is read when
// decoding the backend's error envelope.
const maxErrorBodySize = 64 * 1024

// APIError is a structured error returned by the content backend.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("content backend: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("content backend: HTTP %d", e.StatusCode)
}

// ErrUnauthorized indicates the bearer credential was rejected by the backend.
var ErrUnauthorized = errors.New("content backend: unauthorized")

// ErrSectionNotFound indicates the requested section does not exist.
var ErrSectionNotFound = errors.New("content backend: section not found")

// Client is an HTTP client for the content backend. It is stateless with
// respect to credentials: the bearer token is supplied per call and attached
// as an Authorization header, never stored on the client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOptions configures the content client.
type ClientOptions struct {
	// BaseURL is the backend base URL without a trailing slash.
	BaseURL string

	// Timeout is the per-request timeout (0 = 10s).
	Timeout time.Duration

	// HTTPClient overrides the underlying client (used in tests).
	HTTPClient *http.Client
}

// NewClient creates a content backend client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("content: base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("content: parsing base URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: hc,
	}, nil
}

// envelope is the backend's standard response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// CurrentIdentity resolves the bearer token to an identity record.
// Returns ErrUnauthorized for a 401 response.
func (c *Client) CurrentIdentity(ctx context.Context, token string) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetSection fetches a section by its opaque id.
func (c *Client) GetSection(ctx context.Context, token, sectionID string) (*Section, error) {
	if sectionID == "" {
		return nil, errors.New("content: section id is required")
	}
	var section Section
	path := "/sections/" + url.PathEscape(sectionID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &section); err != nil {
		return nil, err
	}
	return &section, nil
}

// updateSectionRequest is the PUT body for a section content replacement.
type updateSectionRequest struct {
	Content map[string]string `json:"content"`
}

// UpdateSection replaces a section's content mapping. Callers are expected
// to send the full remote content with their changes merged in, not the
// changed fields alone.
func (c *Client) UpdateSection(ctx context.Context, token, sectionID string, updated map[string]string) (*Section, error) {
	if sectionID == "" {
		return nil, errors.New("content: section id is required")
	}
	var section Section
	path := "/sections/" + url.PathEscape(sectionID)
	body := updateSectionRequest{Content: updated}
	if err := c.do(ctx, http.MethodPut, path, token, body, &section); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListSections fetches the ordered sections of a page.
func (c *Client) ListSections(ctx context.Context, token, pageID string) ([]Section, error) {
	if pageID == "" {
		return nil, errors.New("content: page id is required")
	}
	var sections []Section
	path := "/pages/" + url.PathEscape(pageID) + "/sections"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// do performs a request against the backend and decodes the data envelope
// into out. A non-2xx response is decoded into an APIError when possible.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("content: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("content: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("content: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("content: decoding response: %w", err)
	}
	if env.Data == nil {
		return fmt.Errorf("content: response missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("content: decoding data: %w", err)
	}
	return nil
}

// decodeError turns a non-2xx response into an error, preferring the
// backend's error envelope when the body carries one.
func (c *Client) decodeError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrSectionNotFound
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err == nil && len(data) > 0 {
		var env envelope
		if jsonErr := json.Unmarshal(data, &env); jsonErr == nil && env.Error != nil {
			env.Error.StatusCode = resp.StatusCode
			return env.Error
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       "http_error",
		Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
}
