// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides HTTP handlers for the Meridian site: public
// marketing pages, the inline editing endpoints, login hand-off, cookie
// consent and health.
package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// errorDetail matches the error envelope the content backend uses, so the
// browser client deals with one error shape end to end.
type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeData writes a JSON success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": errorDetail{Code: code, Message: message},
	})
}

// decodeJSON decodes a request body, rejecting unknown junk early.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}

// safeReturnPath derives a redirect target from the Referer header. Anything
// that is not a local path on this host falls back to "/" to prevent an
// open redirect (CWE-601).
func safeReturnPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}

	target, err := url.Parse(strings.ReplaceAll(ref, "\\", "/"))
	if err != nil {
		return "/"
	}
	if target.Host != "" && target.Host != r.Host {
		return "/"
	}
	if !strings.HasPrefix(target.Path, "/") || strings.HasPrefix(target.Path, "//") {
		return "/"
	}
	return target.Path
}
