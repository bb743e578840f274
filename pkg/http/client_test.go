package http

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testConfig() *ClientConfig {
	config := DefaultConfig()
	config.HostInterval = 0
	config.Timeout = 2 * time.Second
	return config
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Timeout != 15*time.Second {
		t.Errorf("DefaultConfig().Timeout = %v, want 15s", config.Timeout)
	}
	if config.MaxRedirects != 5 {
		t.Errorf("DefaultConfig().MaxRedirects = %d, want 5", config.MaxRedirects)
	}
	if config.MaxBodySize != 5<<20 {
		t.Errorf("DefaultConfig().MaxBodySize = %d, want %d", config.MaxBodySize, 5<<20)
	}
	if config.Headers == nil {
		t.Error("DefaultConfig() Headers should not be nil")
	}
}

func TestClient_ProfileFor(t *testing.T) {
	client := NewClient(nil)

	tests := []struct {
		host string
		want Profile
	}{
		{"www.consilium.europa.eu", ProfileBrowser},
		{"consilium.europa.eu", ProfileBrowser},
		{"www.nato.int", ProfileBrowser},
		{"WWW.NATO.INT", ProfileBrowser},
		{"www.eeas.europa.eu", ProfileGenericBot},
		{"notnato.int", ProfileGenericBot},
		{"example.com", ProfileGenericBot},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := client.ProfileFor(tt.host); got != tt.want {
				t.Errorf("ProfileFor(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		input   string
		want    Profile
		wantErr bool
	}{
		{"", "", false},
		{"generic-bot", ProfileGenericBot, false},
		{"Browser-Like", ProfileBrowser, false},
		{"curl", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProfile(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProfile(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseProfile(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestClient_Fetch_Headers(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	tests := []struct {
		name      string
		opts      FetchOptions
		wantUA    string
		wantRef   string
		wantFetch bool
	}{
		{
			name:   "generic bot",
			opts:   FetchOptions{Profile: ProfileGenericBot, Referer: "https://ignored.example/"},
			wantUA: GenericUserAgent,
		},
		{
			name:      "browser like with referer",
			opts:      FetchOptions{Profile: ProfileBrowser, Referer: "https://www.nato.int/cps/en/natohq/"},
			wantUA:    BrowserUserAgent,
			wantRef:   "https://www.nato.int/cps/en/natohq/",
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(testConfig())
			if _, err := client.Fetch(context.Background(), server.URL, tt.opts); err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}

			if ua := got.Get("User-Agent"); ua != tt.wantUA {
				t.Errorf("User-Agent = %q, want %q", ua, tt.wantUA)
			}
			if ref := got.Get("Referer"); ref != tt.wantRef {
				t.Errorf("Referer = %q, want %q", ref, tt.wantRef)
			}
			if enc := got.Get("Accept-Encoding"); enc != "gzip, deflate" {
				t.Errorf("Accept-Encoding = %q, want %q", enc, "gzip, deflate")
			}
			if hasFetch := got.Get("Sec-Fetch-Mode") != ""; hasFetch != tt.wantFetch {
				t.Errorf("Sec-Fetch-Mode present = %v, want %v", hasFetch, tt.wantFetch)
			}
		})
	}
}

func TestClient_Fetch_Encodings(t *testing.T) {
	const page = "<html><body><h1>Council adopts conclusions</h1></body></html>"

	gzipBody := func() []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte(page))
		zw.Close()
		return buf.Bytes()
	}
	zlibBody := func() []byte {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write([]byte(page))
		zw.Close()
		return buf.Bytes()
	}
	rawDeflateBody := func() []byte {
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		fw.Write([]byte(page))
		fw.Close()
		return buf.Bytes()
	}

	tests := []struct {
		name     string
		encoding string
		body     []byte
		wantErr  error
	}{
		{name: "identity", encoding: "", body: []byte(page)},
		{name: "gzip", encoding: "gzip", body: gzipBody()},
		{name: "zlib deflate", encoding: "deflate", body: zlibBody()},
		{name: "raw deflate", encoding: "deflate", body: rawDeflateBody()},
		{name: "corrupt gzip", encoding: "gzip", body: []byte("definitely not gzip"), wantErr: ErrDecode},
		{name: "unsupported encoding", encoding: "br", body: []byte(page), wantErr: ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.body)
			}))
			defer server.Close()

			client := NewClient(testConfig())
			body, err := client.Fetch(context.Background(), server.URL, FetchOptions{})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if body != page {
				t.Errorf("Fetch() body = %q, want %q", body, page)
			}
		})
	}
}

func TestClient_Fetch_StatusErrors(t *testing.T) {
	codes := []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError, http.StatusServiceUnavailable}

	for _, code := range codes {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				w.Write([]byte("<html>blocked</html>"))
			}))
			defer server.Close()

			client := NewClient(testConfig())
			_, err := client.Fetch(context.Background(), server.URL, FetchOptions{})

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want *FetchError", err)
			}
			if fe.Kind != KindStatus || fe.StatusCode != code {
				t.Errorf("FetchError = kind %v status %d, want status %d", fe.Kind, fe.StatusCode, code)
			}
			if !errors.Is(err, ErrStatus) {
				t.Errorf("errors.Is(err, ErrStatus) = false")
			}
			if fe.URL != server.URL {
				t.Errorf("FetchError.URL = %q, want %q", fe.URL, server.URL)
			}
		})
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	config := testConfig()
	config.Timeout = 50 * time.Millisecond
	client := NewClient(config)

	start := time.Now()
	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Fetch() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch() took %v, request was not aborted", elapsed)
	}
}

func TestClient_Fetch_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	config := testConfig()
	config.MaxBodySize = 1024
	client := NewClient(config)

	_, err := client.Fetch(context.Background(), server.URL, FetchOptions{})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Fetch() error = %v, want ErrTooLarge", err)
	}

	config.MaxBodySize = 2048
	if _, err := NewClient(config).Fetch(context.Background(), server.URL, FetchOptions{}); err != nil {
		t.Errorf("Fetch() at exact limit error = %v", err)
	}
}

func TestClient_Fetch_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/hop/%d", &n); err != nil || n <= 0 {
			w.Write([]byte("done"))
			return
		}
		http.Redirect(w, r, "/hop/"+strconv.Itoa(n-1), http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig())

	if _, err := client.Fetch(context.Background(), server.URL+"/loop", FetchOptions{}); !errors.Is(err, ErrRedirect) {
		t.Errorf("Fetch(loop) error = %v, want ErrRedirect", err)
	}

	body, err := client.Fetch(context.Background(), server.URL+"/hop/5", FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch(5 hops) error = %v", err)
	}
	if body != "done" {
		t.Errorf("Fetch(5 hops) body = %q, want %q", body, "done")
	}

	if _, err := client.Fetch(context.Background(), server.URL+"/hop/6", FetchOptions{}); !errors.Is(err, ErrRedirect) {
		t.Errorf("Fetch(6 hops) error = %v, want ErrRedirect", err)
	}
}

func TestClient_Fetch_Charset(t *testing.T) {
	// "Délégation" in ISO-8859-1
	latin1 := []byte("<html><body>D\xe9l\xe9gation</body></html>")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(latin1)
	}))
	defer server.Close()

	body, err := NewClient(testConfig()).Fetch(context.Background(), server.URL, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "Délégation") {
		t.Errorf("Fetch() body = %q, want UTF-8 converted text", body)
	}
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	client := NewClient(testConfig())

	for _, raw := range []string{"", "not a url", "ftp://example.com/file", "/relative/path"} {
		_, err := client.Fetch(context.Background(), raw, FetchOptions{})
		if !errors.Is(err, ErrNetwork) {
			t.Errorf("Fetch(%q) error = %v, want ErrNetwork", raw, err)
		}
	}
}

func TestFetchError_Reason(t *testing.T) {
	tests := []struct {
		err  *FetchError
		want string
	}{
		{&FetchError{Kind: KindStatus, StatusCode: 503}, "HTTP status 503"},
		{&FetchError{Kind: KindTimeout}, "request timed out"},
		{&FetchError{Kind: KindDecode}, "failed to decode response body"},
	}

	for _, tt := range tests {
		if got := tt.err.Reason(); got != tt.want {
			t.Errorf("Reason() = %q, want %q", got, tt.want)
		}
	}
}
