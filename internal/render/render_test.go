package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/meridianhealth/meridian-site/internal/content"
)

func testTemplatesFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(
			`{{define "base"}}<html><body>{{template "content" .}}{{template "footer" .}}</body></html>{{end}}`)},
		"partials/footer.html": {Data: []byte(
			`{{define "footer"}}<footer>{{.CurrentYear}}</footer>{{end}}`)},
		"pages/home.html": {Data: []byte(
			`{{define "content"}}<h1>{{.Title}}</h1>{{if .Flash}}<p class="flash">{{.Flash}}</p>{{end}}{{end}}`)},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Config{TemplatesFS: testTemplatesFS()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := r.Render(rec, req, "home", TemplateData{Title: "Meridian Health"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Meridian Health</h1>") {
		t.Errorf("body = %q, want rendered title", body)
	}
	if !strings.Contains(body, "<footer>") {
		t.Errorf("body = %q, want footer partial", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := r.Render(rec, req, "missing", TemplateData{}); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestMarkdown_ConvertsAndSanitizes(t *testing.T) {
	got := string(Markdown("**bold** <script>alert(1)</script>"))

	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("got %q, want bold markup", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("got %q, script must be stripped", got)
	}
}

func TestSectionFieldOr(t *testing.T) {
	section := content.Section{Content: map[string]string{"title": "Care that travels"}}

	if got := sectionFieldOr(section, "title", "placeholder"); got != "Care that travels" {
		t.Errorf("got %q", got)
	}
	if got := sectionFieldOr(section, "subtitle", "placeholder"); got != "placeholder" {
		t.Errorf("got %q, want placeholder for missing field", got)
	}
}
