package shardserver

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"testing"
)

func TestResponseBuffer_Defaults(t *testing.T) {
	w := NewResponseBuffer()
	if w.Status() != http.StatusOK {
		t.Fatalf("initial status = %d, want 200", w.Status())
	}

	w.WriteHeader(http.StatusFound)
	w.WriteHeader(http.StatusTeapot)
	if w.Status() != http.StatusFound {
		t.Fatalf("status = %d, first WriteHeader should win", w.Status())
	}

	w.Reset()
	_, _ = w.WriteString("body")
	w.WriteHeader(http.StatusTeapot)
	if w.Status() != http.StatusOK {
		t.Fatalf("status after Write = %d, want 200", w.Status())
	}
}

func TestResponseBuffer_WriteTo(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		closeAfter bool
		wantBody   string
	}{
		{"keep-alive GET", http.MethodGet, false, "hello"},
		{"close POST", http.MethodPost, true, "hello"},
		{"HEAD has no body", http.MethodHead, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewResponseBuffer()
			w.Header().Set("X-Test", "1")
			_, _ = w.WriteString("hello")

			var out bytes.Buffer
			if err := w.writeTo(bufio.NewWriter(&out), tt.method, tt.closeAfter); err != nil {
				t.Fatalf("writeTo: %v", err)
			}

			req := &http.Request{Method: tt.method}
			resp, err := http.ReadResponse(bufio.NewReader(&out), req)
			if err != nil {
				t.Fatalf("ReadResponse: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if resp.Header.Get("X-Test") != "1" {
				t.Error("custom header lost")
			}
			if resp.ContentLength != 5 {
				t.Errorf("ContentLength = %d, want 5", resp.ContentLength)
			}
			if resp.Close != tt.closeAfter {
				t.Errorf("Close = %v, want %v", resp.Close, tt.closeAfter)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestResponseBuffer_EmptyRedirect(t *testing.T) {
	w := NewResponseBuffer()
	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusFound)

	var out bytes.Buffer
	if err := w.writeTo(bufio.NewWriter(&out), http.MethodGet, false); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("Content-Length: 0\r\n")) {
		t.Fatalf("empty response must carry Content-Length: 0, got %q", out.String())
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("HTTP/1.1 302 Found\r\n")) {
		t.Fatalf("status line = %q", out.String())
	}
}
