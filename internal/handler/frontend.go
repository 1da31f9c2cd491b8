// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/middleware"
	"github.com/meridianhealth/meridian-site/internal/render"
)

// Page identifiers the content backend knows about.
const (
	PageHome    = "home"
	PagePricing = "pricing"
	PagePrivacy = "privacy"
	PageTerms   = "terms"
)

// FrontendHandler renders the public marketing pages.
type FrontendHandler struct {
	renderer *render.Renderer
	sections *cache.SectionCache
}

// NewFrontendHandler creates a frontend handler.
func NewFrontendHandler(renderer *render.Renderer, sections *cache.SectionCache) *FrontendHandler {
	return &FrontendHandler{renderer: renderer, sections: sections}
}

// Home handles GET /.
func (h *FrontendHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "home", PageHome, "Care that comes to you",
		"Primary care for your whole family, at home and online.")
}

// Pricing handles GET /pricing.
func (h *FrontendHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "pricing", PagePricing, "Plans & pricing",
		"Simple membership plans for individuals and families.")
}

// Privacy handles GET /privacy.
func (h *FrontendHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "legal", PagePrivacy, "Privacy policy", "")
}

// Terms handles GET /terms.
func (h *FrontendHandler) Terms(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "legal", PageTerms, "Terms of service", "")
}

// renderPage fetches the page's sections through the cache and renders the
// template. A backend outage degrades to a page without managed content
// instead of an error page; the marketing site stays up.
func (h *FrontendHandler) renderPage(w http.ResponseWriter, r *http.Request, tmpl, pageID, title, description string) {
	sections, err := h.sections.PageSections(r.Context(), pageID)
	if err != nil {
		slog.Warn("section fetch failed", "page_id", pageID, "error", err.Error())
		sections = nil
	}

	data := render.TemplateData{
		Title:       title,
		Description: description,
		Identity:    middleware.GetIdentity(r),
		EditMode:    middleware.IsEditMode(r),
		Sections:    sections,
	}

	if err := h.renderer.Render(w, r, tmpl, data); err != nil {
		slog.Error("template render failed", "template", tmpl, "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// SectionByKind returns the first section of a kind, nil when absent. Used
// by tests and by templates that need one well-known section.
func SectionByKind(sections []content.Section, kind string) *content.Section {
	for i := range sections {
		if sections[i].Kind == kind {
			return &sections[i]
		}
	}
	return nil
}
