package s3

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// acceptsGzip reports whether the client's Accept-Encoding header lists gzip.
func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// compressingWriter returns an io.Writer that gzip-compresses everything
// written to it and sets the Content-Encoding response header, when the
// client advertises gzip support. The returned close func must be called
// after the last write (a no-op when compression was not applied). Used for
// the static-site error document body and the built-in HTML 404 body; the
// index document is served uncompressed through the ordinary object
// response builder.
func compressingWriter(w http.ResponseWriter, r *http.Request) (io.Writer, func()) {
	if !acceptsGzip(r) {
		return w, func() {}
	}

	w.Header().Set("Content-Encoding", "gzip")

	gz := gzip.NewWriter(w)

	return gz, func() { _ = gz.Close() }
}
