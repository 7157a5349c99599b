package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey struct{ name string }

var viewerCtxKey = &contextKey{"viewer"}

// Middleware attaches the viewer to the request context. Requests without an
// Authorization header pass through anonymously; a malformed or invalid
// token is rejected with 401.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			viewer, err := verifier.Validate(tokenStr)
			if err != nil {
				slog.Debug("Rejected bearer token", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey, viewer)
}

// ForContext returns the viewer of the request, if any.
func ForContext(ctx context.Context) (Viewer, bool) {
	viewer, ok := ctx.Value(viewerCtxKey).(Viewer)
	return viewer, ok
}
