package middlewares

import (
	"net/http"

	"github.com/nexaerp/authd/internal/guard"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/metrics"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/tenantguard"
)

// RequireAuth valida el bearer contra el guard activo y fija el tenant
// del request desde la identidad verificada. Si el cliente manda un hint
// X-Tenant-ID que no coincide, el request muere acá, antes del handler.
func RequireAuth(g guard.Guard, enforcer *tenantguard.Enforcer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := helpers.BearerToken(r)
			if bearer == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				helpers.WriteError(w, r, helpers.ErrUnauthorized)
				return
			}

			id, err := g.User(r.Context(), bearer)
			if err != nil {
				metrics.TokenVerifications.WithLabelValues("rejected").Inc()
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				helpers.WriteError(w, r, helpers.ErrUnauthorized)
				return
			}
			metrics.TokenVerifications.WithLabelValues("accepted").Inc()

			if err := enforcer.ValidateHint(r.Context(), id.TenantID, r.Header.Get("X-Tenant-ID")); err != nil {
				helpers.WriteError(w, r, helpers.ErrForbidden)
				return
			}

			ctx := setIdentity(r.Context(), id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.TenantID(id.TenantID),
				logger.PrincipalID(id.Principal.ID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
