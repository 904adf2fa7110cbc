// Package auth contiene los controllers del flujo de autenticación.
package auth

import (
	"github.com/nexaerp/authd/internal/guard"
	"github.com/nexaerp/authd/internal/rbac"
	"github.com/nexaerp/authd/internal/token"
)

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Login   *LoginController
	Refresh *RefreshController
	Logout  *LogoutController
	Me      *MeController
}

// NewControllers crea el agregador.
func NewControllers(g guard.Guard, tokens *token.Service, resolver *rbac.Resolver) *Controllers {
	return &Controllers{
		Login:   NewLoginController(g),
		Refresh: NewRefreshController(tokens),
		Logout:  NewLogoutController(g, tokens),
		Me:      NewMeController(resolver),
	}
}
