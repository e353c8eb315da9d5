package compress

import (
	"compress/gzip"
	"net/http"
)

// GzipWriter is an http.ResponseWriter that gzips successful bodies.
// Other responses pass through untouched.
type GzipWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
	plain       bool
}

func NewGzipWriter(w http.ResponseWriter) *GzipWriter {
	return &GzipWriter{w: w}
}

func (c *GzipWriter) Header() http.Header {
	return c.w.Header()
}

func (c *GzipWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.plain {
		return c.w.Write(p)
	}
	return c.zw.Write(p)
}

func (c *GzipWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	if statusCode < 300 && statusCode != http.StatusNoContent {
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")
		c.zw = gzip.NewWriter(c.w)
	} else {
		c.plain = true
	}
	c.w.WriteHeader(statusCode)
}

// Close flushes the gzip stream.
func (c *GzipWriter) Close() error {
	if c.zw == nil {
		return nil
	}
	return c.zw.Close()
}
