package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kaaltube/backend/internal/api"
)

// Owned is implemented by resources that belong to a single account.
type Owned interface {
	OwnedBy() string
}

// ResourceLoader fetches an owned resource by its route identifier.
type ResourceLoader func(ctx context.Context, id string) (Owned, error)

type resourceCtxKey struct{}

// Resource returns the owned resource attached by RequireOwnership.
func Resource(ctx context.Context) (Owned, bool) {
	resource, ok := ctx.Value(resourceCtxKey{}).(Owned)
	return resource, ok
}

// RequireOwnership allows the request through only when the authenticated
// caller owns the resource named by the route parameter. A resource that
// does not exist is treated exactly like one owned by somebody else, so
// probing cannot distinguish the two. The loaded resource is attached to the
// request context for the handler.
func RequireOwnership(load ResourceLoader, paramName string, errorWriter func(ctx context.Context, w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				errorWriter(r.Context(), w, api.Unauthenticated("authentication required"))
				return
			}

			id := chi.URLParam(r, paramName)
			if id == "" {
				errorWriter(r.Context(), w, api.BadRequest("missing "+paramName))
				return
			}
			if _, err := uuid.Parse(id); err != nil {
				errorWriter(r.Context(), w, api.BadRequest("invalid "+paramName))
				return
			}

			resource, err := load(r.Context(), id)
			if err != nil || resource.OwnedBy() != user.ID {
				errorWriter(r.Context(), w, api.Forbidden("you do not have access to this resource"))
				return
			}

			ctx := context.WithValue(r.Context(), resourceCtxKey{}, resource)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
