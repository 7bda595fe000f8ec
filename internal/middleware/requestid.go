package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

const maxRequestIDLen = 128

// RequestID reuses a caller-supplied X-Request-ID when it looks sane and
// generates one otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestLogger returns base tagged with the request id from ctx.
func RequestLogger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if rid := RequestIDFromContext(ctx); rid != "" {
		return base.With().Str("request_id", rid).Logger()
	}
	return base
}

func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if c := rid[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
