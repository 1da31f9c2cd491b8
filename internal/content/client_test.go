// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client, srv
}

func writeData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func TestClient_CurrentIdentity(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/auth/me" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		writeData(t, w, Identity{
			ID:    "u1",
			Email: "staff@meridianhealth.example",
			Roles: []Role{{Name: "admin"}},
		})
	}))

	identity, err := client.CurrentIdentity(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("CurrentIdentity() error: %v", err)
	}
	if identity.ID != "u1" {
		t.Errorf("identity.ID = %q, want %q", identity.ID, "u1")
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
}

func TestClient_CurrentIdentity_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.CurrentIdentity(context.Background(), "expired")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClient_GetSection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sections/hero-1" {
			t.Errorf("path = %q, want /sections/hero-1", r.URL.Path)
		}
		writeData(t, w, Section{
			ID:      "hero-1",
			PageID:  "home",
			Content: map[string]string{"title": "Care that comes to you"},
		})
	}))

	section, err := client.GetSection(context.Background(), "tok", "hero-1")
	if err != nil {
		t.Fatalf("GetSection() error: %v", err)
	}
	if section.Field("title") != "Care that comes to you" {
		t.Errorf("title = %q", section.Field("title"))
	}
	if section.PageID != "home" {
		t.Errorf("PageID = %q, want home", section.PageID)
	}
}

func TestClient_GetSection_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetSection(context.Background(), "tok", "missing")
	if !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("err = %v, want ErrSectionNotFound", err)
	}
}

func TestClient_GetSection_EmptyID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be sent for an empty section id")
	}))

	if _, err := client.GetSection(context.Background(), "tok", ""); err == nil {
		t.Fatal("GetSection(\"\") should fail locally")
	}
}

func TestClient_UpdateSection_SendsFullContent(t *testing.T) {
	var gotBody updateSectionRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		writeData(t, w, Section{ID: "hero-1", Content: gotBody.Content})
	}))

	updated := map[string]string{"title": "New", "subtitle": "Sub"}
	section, err := client.UpdateSection(context.Background(), "tok", "hero-1", updated)
	if err != nil {
		t.Fatalf("UpdateSection() error: %v", err)
	}
	if gotBody.Content["subtitle"] != "Sub" {
		t.Errorf("request body missing sibling field: %v", gotBody.Content)
	}
	if section.Field("title") != "New" {
		t.Errorf("response title = %q, want New", section.Field("title"))
	}
}

func TestClient_UpdateSection_BackendError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "validation_error", "message": "content too long"},
		})
	}))

	_, err := client.UpdateSection(context.Background(), "tok", "hero-1", map[string]string{"title": "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "validation_error" {
		t.Errorf("Code = %q, want validation_error", apiErr.Code)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
}

func TestClient_ListSections_Ordered(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages/home/sections" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeData(t, w, []Section{
			{ID: "hero-1", Position: 0},
			{ID: "features-1", Position: 1},
		})
	}))

	sections, err := client.ListSections(context.Background(), "", "home")
	if err != nil {
		t.Fatalf("ListSections() error: %v", err)
	}
	if len(sections) != 2 || sections[0].ID != "hero-1" || sections[1].ID != "features-1" {
		t.Errorf("sections = %+v", sections)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // force connection refused

	client, err := NewClient(ClientOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	if _, err := client.GetSection(context.Background(), "tok", "hero-1"); err == nil {
		t.Fatal("expected network error")
	}
}
