package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

// identityKey is the context key for the authenticated caller.
type identityKey struct{}

// identityFrom extracts the authenticated identity from the context.
func identityFrom(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	return id, ok
}

// authenticate resolves the Authorization bearer token to an identity and
// rejects the request with 401 when absent or invalid.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		identity, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole guards a route subtree to callers with the given role.
func requireRole(role user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFrom(r.Context())
			if !ok {
				respondError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if identity.Role != role {
				respondError(w, r, http.StatusForbidden, "not authorized for this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
