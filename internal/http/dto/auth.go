// Package dto define los contratos JSON de la API.
package dto

import "time"

type LoginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

// LoginResponse cubre los tres resultados posibles. Con 2FA pendiente
// sólo viaja two_factor_token; con sesión, session_id.
type LoginResponse struct {
	TokenType        string     `json:"token_type,omitempty"`
	AccessToken      string     `json:"access_token,omitempty"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	RememberToken    string     `json:"remember_token,omitempty"`
	TwoFactorPending bool       `json:"two_factor_pending,omitempty"`
	TwoFactorToken   string     `json:"two_factor_token,omitempty"`
}

type TwoFactorVerifyRequest struct {
	TwoFactorToken string `json:"two_factor_token"`
	Code           string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest es opcional: con refresh_token presente, el logout lo
// revoca junto con el access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type MeResponse struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
