package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// ConsentCookieName is the well-known cookie holding the visitor's cookie
// preferences.
const ConsentCookieName = "meridian_cookie_consent"

// ConsentRecord is the persisted cookie-preference record. Necessary cookies
// are always on.
type ConsentRecord struct {
	Necessary bool  `json:"necessary"`
	Analytics bool  `json:"analytics"`
	Marketing bool  `json:"marketing"`
	Timestamp int64 `json:"timestamp"`
}

// ConsentHandler records the visitor's cookie choices.
type ConsentHandler struct {
	secure bool
}

// NewConsentHandler creates a consent handler. secure controls the cookie's
// Secure attribute.
func NewConsentHandler(secure bool) *ConsentHandler {
	return &ConsentHandler{secure: secure}
}

// Save handles POST /consent.
func (h *ConsentHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	record := ConsentRecord{
		Necessary: true,
		Timestamp: time.Now().Unix(),
	}
	if r.PostFormValue("choice") == "all" {
		record.Analytics = true
		record.Marketing = true
	} else {
		record.Analytics = r.PostFormValue("analytics") == "1"
		record.Marketing = r.PostFormValue("marketing") == "1"
	}

	value, err := json.Marshal(record)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ConsentCookieName,
		Value:    encodeCookieValue(value),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: false, // the banner script reads it to decide visibility
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, safeReturnPath(r), http.StatusSeeOther)
}

// Consent reads the visitor's stored preferences, nil when none are set or
// the cookie is unreadable.
func Consent(r *http.Request) *ConsentRecord {
	cookie, err := r.Cookie(ConsentCookieName)
	if err != nil {
		return nil
	}
	raw, err := decodeCookieValue(cookie.Value)
	if err != nil {
		return nil
	}
	var record ConsentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil
	}
	return &record
}

// Cookie values cannot carry raw JSON, so the record is base64url encoded.
func encodeCookieValue(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCookieValue(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(value)
}
