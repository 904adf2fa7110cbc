package auth

import (
	"net/http"

	"github.com/nexaerp/authd/internal/http/dto"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/http/middlewares"
	"github.com/nexaerp/authd/internal/rbac"
)

type MeController struct {
	resolver *rbac.Resolver
}

func NewMeController(resolver *rbac.Resolver) *MeController {
	return &MeController{resolver: resolver}
}

// Me maneja GET /v1/auth/me: el principal autenticado con sus roles y
// permisos resueltos para el tenant del request.
func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middlewares.GetIdentity(ctx)
	if id == nil {
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
		return
	}

	roles, err := c.resolver.GetRoles(ctx, id.Principal, id.TenantID)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	perms, err := c.resolver.GetPermissions(ctx, id.Principal, id.TenantID)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	if perms == nil {
		perms = []string{}
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		ID:          id.Principal.ID,
		TenantID:    id.TenantID,
		Email:       id.Principal.Email,
		Name:        id.Principal.Name,
		Roles:       roles,
		Permissions: perms,
	})
}
