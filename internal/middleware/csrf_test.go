package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultCSRFConfig_Development(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012") // 32-byte key
	cfg := DefaultCSRFConfig(authKey, true)

	if len(cfg.AuthKey) != 32 {
		t.Errorf("expected 32-byte AuthKey, got %d bytes", len(cfg.AuthKey))
	}

	// TrustedOrigins must be host-only (not full URLs) for the csrf library.
	if len(cfg.TrustedOrigins) != 2 {
		t.Errorf("expected 2 TrustedOrigins in dev mode, got %d", len(cfg.TrustedOrigins))
	}
	for _, origin := range cfg.TrustedOrigins {
		if len(origin) > 4 && origin[:4] == "http" {
			t.Errorf("TrustedOrigin should be host:port, not full URL: %s", origin)
		}
	}
}

func TestDefaultCSRFConfig_Production(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	cfg := DefaultCSRFConfig(authKey, false)

	if len(cfg.AuthKey) != 32 {
		t.Errorf("expected 32-byte AuthKey, got %d bytes", len(cfg.AuthKey))
	}
	if len(cfg.TrustedOrigins) != 0 {
		t.Errorf("expected no TrustedOrigins in production, got %d", len(cfg.TrustedOrigins))
	}
}

func TestCSRF_AllowsSafeMethods(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	handler := CSRF(DefaultCSRFConfig(authKey, false))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for safe method", rec.Code)
	}
}

func TestCSRF_BlocksCrossSitePost(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	handler := CSRF(DefaultCSRFConfig(authKey, false))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/editing/save", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for cross-site POST", rec.Code)
	}
}

func TestCSRF_AllowsSameOriginPost(t *testing.T) {
	authKey := []byte("12345678901234567890123456789012")
	handler := CSRF(DefaultCSRFConfig(authKey, false))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/editing/save", nil)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for same-origin POST", rec.Code)
	}
}
