package auth

import (
	"net/http"
	"strings"

	"github.com/nexaerp/authd/internal/guard"
	"github.com/nexaerp/authd/internal/http/dto"
	"github.com/nexaerp/authd/internal/http/helpers"
	"github.com/nexaerp/authd/internal/store"
)

// LoginController maneja login y el segundo paso de 2FA.
type LoginController struct {
	guard guard.Guard
}

func NewLoginController(g guard.Guard) *LoginController {
	return &LoginController{guard: g}
}

// Login maneja POST /v1/auth/login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Email = strings.TrimSpace(req.Email)
	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("tenant_id, email and password are required"))
		return
	}

	out, err := c.guard.Attempt(ctx, guard.Credentials{
		Credentials: store.Credentials{
			TenantID: req.TenantID,
			Email:    req.Email,
			Password: req.Password,
		},
		Origin:   helpers.ClientIP(r),
		Remember: req.Remember,
	})
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	writeOutcome(w, r, out)
}

// TwoFactorVerify maneja POST /v1/auth/2fa/verify
func (c *LoginController) TwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.TwoFactorVerifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.TwoFactorToken == "" || req.Code == "" {
		helpers.WriteError(w, r, helpers.ErrBadRequest.WithDetail("two_factor_token and code are required"))
		return
	}

	out, err := c.guard.CompleteTwoFactor(ctx, req.TwoFactorToken, req.Code)
	if err != nil {
		helpers.WriteError(w, r, err)
		return
	}
	writeOutcome(w, r, out)
}

// writeOutcome traduce el resultado del guard a la respuesta HTTP.
func writeOutcome(w http.ResponseWriter, r *http.Request, out *guard.Outcome) {
	switch out.Status {
	case guard.StatusAuthenticated:
		resp := dto.LoginResponse{RememberToken: out.RememberToken}
		if out.Tokens != nil {
			resp.TokenType = "Bearer"
			resp.AccessToken = out.Tokens.AccessToken
			resp.RefreshToken = out.Tokens.RefreshToken
			exp := out.Tokens.AccessExpiresAt
			resp.ExpiresAt = &exp
		}
		if out.Session != nil {
			resp.SessionID = out.Session.ID
			exp := out.Session.ExpiresAt
			resp.ExpiresAt = &exp
		}
		helpers.WriteJSON(w, http.StatusOK, resp)
	case guard.StatusTwoFactorRequired:
		helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
			TwoFactorPending: true,
			TwoFactorToken:   out.TwoFactorToken,
		})
	default:
		// La razón real ya quedó en logs y auditoría.
		helpers.WriteError(w, r, helpers.ErrUnauthorized)
	}
}
