// Package middleware provides HTTP middleware for the S3 API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const requestIDKey contextKey = iota

// RequestID is a middleware that assigns each request an ID, following AWS
// S3's x-amz-request-id header convention: an incoming X-Amz-Request-Id is
// reused, otherwise a new UUID is generated. The request ID is added to the
// response headers and made available in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Amz-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Amz-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}

	return ""
}

// SetRequestID sets a request ID in the context; useful for tests.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// RequestLogger is a middleware that logs request information including the
// request ID and duration. Logger is invoked after the request completes;
// a nil Logger disables logging entirely (the `silent` config option).
type RequestLogger struct {
	Logger func(requestID, method, path string, statusCode int, duration time.Duration)
}

// Middleware returns the logging middleware handler.
func (rl *RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		if rl.Logger != nil {
			rl.Logger(GetRequestID(r.Context()), r.Method, r.URL.Path, rec.statusCode, time.Since(start))
		}
	})
}
