package httpserver

import (
	"net/http"

	"github.com/yndnr/chaingate/internal/core/domain"
)

// NewStaticHandler serves files under root. With an empty root every
// request gets a 403 with the "URI not support" text.
func NewStaticHandler(root string) http.Handler {
	if root == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(domain.ErrForbidden.Text()))
		})
	}
	return http.FileServer(http.Dir(root))
}
