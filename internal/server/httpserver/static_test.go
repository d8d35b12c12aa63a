package httpserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticHandler_NoRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStaticHandler("").ServeHTTP(rec, httptest.NewRequest("GET", "/index.html", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec.Body.String() != "URI not support" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestStaticHandler_ServesFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "login.html"), []byte("<form>login</form>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h := NewStaticHandler(root)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/login.html", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<form>login</form>" {
		t.Errorf("status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/missing.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rec.Code)
	}
}
