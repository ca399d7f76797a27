package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// userHeader identifies the caller. Authentication happens upstream.
const userHeader = "X-User-ID"

type userCtxKey struct{}

func contextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

func userFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(userCtxKey{}).(string)
	return id
}

// requireUser rejects requests without a user ID header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "ErrMissingUser")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), userID)))
	})
}

// requireAdmin checks the bearer token against the configured admin token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	want := []byte(h.config.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || len(got) != len(want) || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			slog.Warn("admin token mismatch", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, r, http.StatusUnauthorized, "ErrBadRequest")
			return
		}
		next.ServeHTTP(w, r)
	})
}
