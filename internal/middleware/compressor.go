package middleware

import (
	"net/http"
	"strings"

	"github.com/drstein77/hostfront/internal/compress"
)

// CompressResponseMiddleware gzips responses for clients that accept gzip.
func CompressResponseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// By default set the original http.ResponseWriter
		ow := w

		// Check if the client can accept compressed data
		acceptEncoding := r.Header.Get("Accept-Encoding")
		if strings.Contains(acceptEncoding, "gzip") {
			cw := compress.NewGzipWriter(w)
			ow = cw
			defer cw.Close()
		}
		w.Header().Add("Vary", "Accept-Encoding")

		// Transfer control to the handler
		next.ServeHTTP(ow, r)
	})
}
