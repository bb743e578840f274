package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// ErrorDocument builds the body sent with a 500 response
type ErrorDocument func(r *http.Request, message string) []byte

// NewRecoveryMiddleware turns a panic in a handler into a 500 response carrying
// the error document, so feed readers still receive valid XML.
func NewRecoveryMiddleware(doc ErrorDocument) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)

				body := doc(r, "Internal server error")
				w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write(body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
