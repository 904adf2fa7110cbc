package middlewares

import (
	"net/http"

	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/rbac"
)

// RequirePermission corta con 403 si el principal no tiene el permiso en
// el tenant del request. Corre después de RequireAuth.
func RequirePermission(resolver *rbac.Resolver, permission string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil {
				helpers.WriteError(w, r, helpers.ErrUnauthorized)
				return
			}
			if err := resolver.Authorize(r.Context(), id.Principal, id.TenantID, permission); err != nil {
				logger.From(r.Context()).Info("permission denied",
					logger.Permission(permission))
				helpers.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
