// Package twofactor expone la gestión del segundo factor: alta, confirma
// y baja. Todas las rutas requieren un principal autenticado.
package twofactor

import (
	"errors"
	"net/http"

	"github.com/nexaerp/authd/internal/http/dto"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/http/middlewares"
	"github.com/nexaerp/authd/internal/twofactor"
)

type Controller struct {
	service *twofactor.Service
}

func NewController(service *twofactor.Service) *Controller {
	return &Controller{service: service}
}

// Enroll maneja POST /v1/2fa/enroll. Devuelve secret, otpauth URL y los
// backup codes en claro: es la única vez que se muestran.
func (c *Controller) Enroll(w http.ResponseWriter, r *http.Request) {
	id := middlewares.GetIdentity(r.Context())
	if id == nil {
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
		return
	}

	enr, err := c.service.Enable(r.Context(), id.Principal)
	if err != nil {
		if errors.Is(err, twofactor.ErrAlreadyEnabled) {
			helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("two-factor already enabled"))
			return
		}
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.TwoFactorEnrollResponse{
		Secret:      enr.Secret,
		OTPAuthURL:  enr.OTPAuthURL,
		BackupCodes: enr.BackupCodes,
	})
}

// Confirm maneja POST /v1/2fa/confirm: activa el enrolamiento pendiente
// probando que la app del usuario genera códigos válidos.
func (c *Controller) Confirm(w http.ResponseWriter, r *http.Request) {
	id := middlewares.GetIdentity(r.Context())
	if id == nil {
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
		return
	}
	var req dto.TwoFactorConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("code is required"))
		return
	}
	if err := c.service.Confirm(r.Context(), id.Principal.ID, req.Code); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "enabled"})
}

// Disable maneja POST /v1/2fa/disable. Pide un código vigente: robar una
// sesión no alcanza para apagar el segundo factor.
func (c *Controller) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middlewares.GetIdentity(ctx)
	if id == nil {
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
		return
	}
	var req dto.TwoFactorDisableRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("code is required"))
		return
	}
	if err := c.service.Verify(ctx, id.Principal.ID, req.Code); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	if err := c.service.Disable(ctx, id.Principal.ID); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "disabled"})
}
