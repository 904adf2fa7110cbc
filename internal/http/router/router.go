// Package router arma el árbol de rutas del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/nexaerp/authd/internal/http/controllers/auth"
	customerctrl "github.com/nexaerp/authd/internal/http/controllers/customers"
	healthctrl "github.com/nexaerp/authd/internal/http/controllers/health"
	twofactorctrl "github.com/nexaerp/authd/internal/http/controllers/twofactor"
	mw "github.com/nexaerp/authd/internal/http/middlewares"
)

// Deps agrupa todo lo que el router necesita para montar la API.
type Deps struct {
	Auth      *authctrl.Controllers
	TwoFactor *twofactorctrl.Controller
	Customers *customerctrl.Controller
	Health    *healthctrl.Controller

	RequireAuth       mw.Middleware
	RequirePermission func(permission string) mw.Middleware

	CORSAllowedOrigins []string
}

// New construye el router. Orden de middlewares: recover primero, después
// request id, CORS, logging y métricas; auth sólo en el grupo protegido.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithCORS(deps.CORSAllowedOrigins))
	r.Use(mw.WithLogging())
	r.Use(mw.WithMetrics())

	// Público
	r.Get("/healthz", deps.Health.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Login y refresh no llevan bearer.
		r.Post("/auth/login", deps.Auth.Login.Login)
		r.Post("/auth/2fa/verify", deps.Auth.Login.TwoFactorVerify)
		r.Post("/auth/refresh", deps.Auth.Refresh.Refresh)

		// Protegido por el guard activo.
		r.Group(func(r chi.Router) {
			r.Use(deps.RequireAuth)

			r.Post("/auth/logout", deps.Auth.Logout.Logout)
			r.Get("/auth/me", deps.Auth.Me.Me)

			r.Post("/2fa/enroll", deps.TwoFactor.Enroll)
			r.Post("/2fa/confirm", deps.TwoFactor.Confirm)
			r.Post("/2fa/disable", deps.TwoFactor.Disable)

			r.With(deps.RequirePermission("sales.view")).
				Get("/customers/{id}", deps.Customers.Get)
		})
	})

	return r
}
