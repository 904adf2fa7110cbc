package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/guard"
	"github.com/nexaerp/authd/internal/http/dto"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/token"
)

type LogoutController struct {
	guard  guard.Guard
	tokens *token.Service
}

func NewLogoutController(g guard.Guard, tokens *token.Service) *LogoutController {
	return &LogoutController{guard: g, tokens: tokens}
}

// Logout maneja POST /v1/auth/logout. Invalida el bearer y, si el body
// trae el refresh_token del mismo login, también lo revoca: después del
// logout ese refresh no rota más pares. Idempotente: repetirlo con los
// mismos tokens responde igual.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Body opcional: sin body o con JSON inválido el logout sigue, sólo
	// que no hay refresh que revocar.
	var req dto.LogoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := c.guard.Logout(ctx, helpers.BearerToken(r)); err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	if req.RefreshToken != "" {
		if err := c.tokens.Revoke(ctx, req.RefreshToken); err != nil && !errors.Is(err, autherr.ErrInvalidToken) {
			helpers.WriteError(w, r, err)
			return
		}
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "logged_out"})
}
