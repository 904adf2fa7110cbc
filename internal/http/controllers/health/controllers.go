package health

import (
	"net/http"

	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/store/core"
)

type Controller struct {
	store core.Store
	cache cache.Client
}

func NewController(store core.Store, cc cache.Client) *Controller {
	return &Controller{store: store, cache: cc}
}

// Healthz maneja GET /healthz: verifica storage y cache.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deps := map[string]string{"storage": "ok", "cache": "ok"}
	overall := "ok"
	status := http.StatusOK

	if err := c.store.Ping(ctx); err != nil {
		deps["storage"] = "down"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}
	if err := c.cache.Ping(ctx); err != nil {
		deps["cache"] = "down"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, map[string]any{
		"status": overall,
		"deps":   deps,
	})
}
