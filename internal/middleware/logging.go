package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type requestInfoKey struct{}

// requestInfo is filled in as the request moves through the handler chain
// and logged once the response is done.
type requestInfo struct {
	id      string
	subject string
}

// ResponseWriter records the status and body size of a response
type ResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *ResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush passes through to the underlying writer so event streams work
func (rw *ResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestID returns the id assigned to the request, or ""
func RequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// SetSubject records the authenticated subject for the request log line
func SetSubject(ctx context.Context, subject string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.subject = subject
	}
}

// Logging assigns each request an id and logs it on completion.
// An incoming X-Request-ID is kept when it parses as a UUID.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{id: r.Header.Get(RequestIDHeader)}
			if _, err := uuid.Parse(info.id); err != nil {
				info.id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, info.id)
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

			wrapped := &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			switch {
			case wrapped.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case wrapped.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("request_id", info.id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", time.Since(start)),
			}
			if info.subject != "" {
				attrs = append(attrs, slog.String("subject", info.subject))
			}
			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}
