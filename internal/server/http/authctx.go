package httpserver

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const bearerKey ctxKey = "lexes.bearer"

// WithBearer stores the presented bearer token in context.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// BearerFromCtx fetches the bearer token from context.
func BearerFromCtx(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(bearerKey).(string)
	return tok, ok && tok != ""
}

// Bearer copies "Authorization: Bearer <token>" into the request context. Requests
// without one pass through; the services reject them when a token is required.
func Bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := bearerToken(r); ok {
			r = r.WithContext(WithBearer(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}
