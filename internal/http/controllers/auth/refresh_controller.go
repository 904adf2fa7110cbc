package auth

import (
	"net/http"

	"github.com/nexaerp/authd/internal/http/dto"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/token"
)

// RefreshController rota el par de tokens. Sólo aplica al guard "token":
// con sesiones no hay refresh, la sesión se renueva sola en el cache.
type RefreshController struct {
	tokens *token.Service
}

func NewRefreshController(tokens *token.Service) *RefreshController {
	return &RefreshController{tokens: tokens}
}

// Refresh maneja POST /v1/auth/refresh
func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("refresh_token is required"))
		return
	}

	pair, err := c.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	exp := pair.AccessExpiresAt
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
		TokenType:    "Bearer",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    &exp,
	})
}
