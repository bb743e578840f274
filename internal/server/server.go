// Package server exposes the feeds over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lepinkainen/eurofeeds/internal/feedgen"
	"github.com/lepinkainen/eurofeeds/internal/metrics"
	"github.com/lepinkainen/eurofeeds/internal/middleware"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	"github.com/lepinkainen/eurofeeds/pkg/providers"
)

// ShutdownTimeout bounds how long in-flight requests may finish after a stop signal
const ShutdownTimeout = 10 * time.Second

// Deps holds everything the router needs
type Deps struct {
	Service  *feedgen.Service
	Registry *providers.ProviderRegistry
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

type handler struct {
	service  *feedgen.Service
	registry *providers.ProviderRegistry
}

// NewRouter builds the HTTP handler.
//
// Middleware order:
//
//	RequestID → Logging → Recovery → CORS → GetHead
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{service: deps.Service, registry: deps.Registry}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(h.errorDocument))
	r.Use(middleware.NewCORSMiddleware())
	r.Use(chimw.GetHead)

	r.NotFound(notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/", h.home)
	r.Get("/healthz", healthz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Get("/{org}/{feed}", h.feed)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "feed not found", http.StatusNotFound)
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "org") + "/" + chi.URLParam(r, "feed")

	format, err := feed.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Feed(r.Context(), key, format)
	switch {
	case errors.Is(err, feedgen.ErrUnknownFeed):
		notFound(w, r)
		return
	case errors.Is(err, context.Canceled):
		// client went away
		return
	case err != nil:
		slog.Error("Failed to serve feed", "feed", key, "format", format, "error", err)
		w.Header().Set("Content-Type", feed.RSS.ContentType())
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(h.service.Renderer().ErrorDocument(h.service.SelfURL(key), "The feed could not be generated. Please try again later."))
		return
	}

	maxAge := int(h.service.CacheExpiry().Seconds())
	w.Header().Set("Content-Type", doc.ContentType())
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	w.Header().Set("Last-Modified", doc.Generated.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	_, _ = w.Write(doc.Body)
}

func (h *handler) errorDocument(r *http.Request, message string) []byte {
	return h.service.Renderer().ErrorDocument(h.service.SelfURL(strings.TrimPrefix(r.URL.Path, "/")), message)
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// NewHTTPServer wraps handler with the listen address and timeouts
func NewHTTPServer(addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
