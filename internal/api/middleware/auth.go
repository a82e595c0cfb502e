package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ecogen/ecogen/backend/internal/application/services"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

type contextKey string

const workspaceKey contextKey = "workspace"

// WorkspaceResolver resolves a bearer token to its workspace
type WorkspaceResolver interface {
	Resolve(ctx context.Context, token string) (*services.Workspace, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithWorkspace stores ws on ctx
func WithWorkspace(ctx context.Context, ws *services.Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey, ws)
}

// WorkspaceFromContext returns the workspace resolved by RequireSession
func WorkspaceFromContext(ctx context.Context) (*services.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey).(*services.Workspace)
	return ws, ok && ws != nil
}

// RequireSession rejects requests without a live session and otherwise
// passes the resolved workspace down in the request context
func RequireSession(resolver WorkspaceResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeAuthError(w, "missing bearer token")
				return
			}

			ws, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if apperrors.IsType(err, apperrors.ErrorTypeStore) {
					writeError(w, http.StatusServiceUnavailable, apperrors.MessageOf(err), apperrors.ErrorTypeStore)
					return
				}
				writeAuthError(w, apperrors.MessageOf(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ecogen"`)
	writeError(w, http.StatusUnauthorized, message, apperrors.ErrorTypeAuth)
}

func writeError(w http.ResponseWriter, status int, message string, errType apperrors.ErrorType) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"type":  string(errType),
	})
}
