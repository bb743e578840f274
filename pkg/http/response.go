package http

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// EnsureSuccess returns a status FetchError for any non-2xx response
func EnsureSuccess(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Kind: KindStatus, StatusCode: resp.StatusCode}
	}
	return nil
}

// ReadBody decodes the response content encoding, enforces maxBytes on the decoded
// size and converts the result to UTF-8. maxBytes <= 0 disables the size check.
func ReadBody(resp *http.Response, maxBytes int64) (string, error) {
	raw := &trackingReader{r: resp.Body}

	decoded, err := decodingReader(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		if raw.err != nil {
			return "", raw.err
		}
		return "", &FetchError{Kind: KindDecode, Err: err}
	}

	var src io.Reader = decoded
	if maxBytes > 0 {
		src = io.LimitReader(decoded, maxBytes+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		if raw.err != nil {
			return "", raw.err
		}
		return "", &FetchError{Kind: KindDecode, Err: err}
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", &FetchError{Kind: KindTooLarge, Err: fmt.Errorf("limit is %d bytes", maxBytes)}
	}

	return toUTF8(data, resp.Header.Get("Content-Type")), nil
}

// decodingReader wraps r according to a Content-Encoding header value
func decodingReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw
		br := bufio.NewReader(r)
		header, err := br.Peek(2)
		if err != nil {
			return nil, fmt.Errorf("reading deflate header: %w", err)
		}
		if isZlibHeader(header) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

func isZlibHeader(b []byte) bool {
	return len(b) >= 2 && b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// toUTF8 converts data to UTF-8 based on the Content-Type header and markup sniffing
func toUTF8(data []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		slog.Debug("Charset detection failed, using raw body", "content_type", contentType, "error", err)
		return string(data)
	}

	converted, err := io.ReadAll(reader)
	if err != nil {
		slog.Debug("Charset conversion failed, using raw body", "content_type", contentType, "error", err)
		return string(data)
	}

	return string(converted)
}

// trackingReader remembers transport errors so they are not mistaken for decode errors
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
