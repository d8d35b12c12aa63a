package shardserver

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ResponseBuffer is an http.ResponseWriter that collects one response in
// memory. Its status starts at 200.
type ResponseBuffer struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

var _ http.ResponseWriter = (*ResponseBuffer)(nil)

// NewResponseBuffer returns an empty 200 response.
func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

// Header returns the response headers.
func (w *ResponseBuffer) Header() http.Header { return w.header }

// WriteHeader sets the status. Only the first call has an effect.
func (w *ResponseBuffer) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
}

// Write appends to the body.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.body.Write(p)
}

// WriteString appends to the body.
func (w *ResponseBuffer) WriteString(s string) (int, error) {
	w.wroteHeader = true
	return w.body.WriteString(s)
}

// Status returns the response status.
func (w *ResponseBuffer) Status() int { return w.status }

// Body returns the buffered body.
func (w *ResponseBuffer) Body() []byte { return w.body.Bytes() }

// Reset discards headers and body and restores the 200 status.
func (w *ResponseBuffer) Reset() {
	w.header = make(http.Header)
	w.status = http.StatusOK
	w.body.Reset()
	w.wroteHeader = false
}

// writeTo serializes the response as HTTP/1.1.
func (w *ResponseBuffer) writeTo(bw *bufio.Writer, method string, closeAfter bool) error {
	h := w.header.Clone()
	body := w.body.Bytes()
	if h.Get("Content-Type") == "" && len(body) > 0 {
		h.Set("Content-Type", http.DetectContentType(body))
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if h.Get("Date") == "" {
		h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if closeAfter {
		h.Set("Connection", "close")
	}

	text := http.StatusText(w.status)
	if text == "" {
		text = "status code " + strconv.Itoa(w.status)
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %03d %s\r\n", w.status, text); err != nil {
		return err
	}
	if err := h.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if method != http.MethodHead {
		if _, err := bw.Write(body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// hijackWriter lets websocket.Upgrader take over a connection whose request
// was read by the shard reader.
type hijackWriter struct {
	*ResponseBuffer
	c        *Conn
	hijacked bool
}

var _ http.Hijacker = (*hijackWriter)(nil)

func (h *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return h.c.netConn, bufio.NewReadWriter(h.c.br, bufio.NewWriter(h.c.netConn)), nil
}
