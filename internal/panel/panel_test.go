package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandlerServesRoot(t *testing.T) {
	handler := Handler("")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if !strings.Contains(w.Body.String(), "/api/v1/door/commands") {
		t.Error("GET /: page does not reference the command endpoint")
	}
}

func TestHandlerFallback(t *testing.T) {
	handler := Handler("")

	for _, p := range []string{"/door", "/some/deep/link"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", p, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: fallback did not serve index.html", p)
		}
	}
}

func TestHandlerCacheControl(t *testing.T) {
	handler := Handler("")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestHandlerServesFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<!DOCTYPE html><p>dev</p>"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.css"), []byte("body{}"), 0600); err != nil {
		t.Fatal(err)
	}
	handler := Handler(dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "dev") {
		t.Errorf("GET /: body = %q, want dev page", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/extra.css", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Body.String() != "body{}" {
		t.Errorf("GET /extra.css: body = %q", w.Body.String())
	}
}

func TestHandlerMissingDirUsesEmbedded(t *testing.T) {
	handler := Handler(filepath.Join(t.TempDir(), "missing"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "Garage door") {
		t.Error("missing dir did not fall back to embedded page")
	}
}
