// Package customers es la superficie de recursos protegidos que consume
// el resto del ERP a través de este subsistema. Sirve de referencia de
// cómo se encadenan RBAC, ownership y el escaneo de respuesta.
package customers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/http/middlewares"
	"github.com/nexaerp/authd/internal/tenantguard"
)

// Record es el payload que devuelve el lookup. TenantID viaja en la
// respuesta para que el enforcer pueda auditarla antes de serializar.
type Record struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
}

type Controller struct {
	enforcer *tenantguard.Enforcer
}

func NewController(enforcer *tenantguard.Enforcer) *Controller {
	return &Controller{enforcer: enforcer}
}

// Get maneja GET /v1/customers/{id}. El ownership check corre antes de
// tocar el recurso; el payload pasa por el escaneo de aislamiento antes
// de salir.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middlewares.GetIdentity(ctx)
	if id == nil {
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
		return
	}
	customerID := chi.URLParam(r, "id")

	if err := c.enforcer.CheckOwnership(ctx, "customers", customerID, id.TenantID); err != nil {
		helpers.WriteError(w, r, err)
		return
	}

	payload := Record{ID: customerID, TenantID: id.TenantID}
	if err := c.enforcer.ScanPayload(ctx, id.TenantID, payload); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, payload)
}
