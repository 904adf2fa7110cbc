// Package guard compone CredentialStore + TokenService (o sesiones
// server-side) detrás de un contrato único. El resto del sistema es
// agnóstico de la estrategia: se elige una por deployment profile en la
// factory y nunca se resuelve dinámicamente por request.
package guard

import (
	"context"
	"time"

	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/token"
)

// Credentials de un intento de login.
type Credentials struct {
	store.Credentials
	// Origin es la IP del cliente, para el contador per-origin.
	Origin string
	// Remember pide un remember-token de larga vida (solo session guard).
	Remember bool
}

// Status del resultado de Attempt / CompleteTwoFactor. Tagged union
// explícito: el "2FA requerido" es un estado del flujo, no un error.
type Status int

const (
	StatusRejected Status = iota
	StatusAuthenticated
	StatusTwoFactorRequired
)

// Session es el resultado del session guard.
type Session struct {
	ID        string
	ExpiresAt time.Time
}

// Outcome de un intento de autenticación.
type Outcome struct {
	Status Status

	// Authenticated: exactamente uno de Tokens/Session según estrategia.
	Tokens  *token.Pair
	Session *Session

	// RememberToken sólo si Credentials.Remember y la estrategia lo soporta.
	RememberToken string

	// TwoFactorRequired: token temporal de corta vida, distinto de
	// access/refresh.
	TwoFactorToken string

	// Rejected: la razón interna (se loguea; al caller sólo le llega el
	// genérico).
	Reason error
}

// Identity es el principal resuelto desde un bearer/sesión, con el tenant
// fijado por el claim verificado.
type Identity struct {
	Principal *core.Principal
	TenantID  string
	// TokenID: jti del access token o id de la sesión. Es la clave de
	// revocación del Logout.
	TokenID   string
	ExpiresAt time.Time
}

// Guard es el contrato expuesto al routing/middleware. Los módulos de
// negocio nunca tocan TokenService ni CredentialStore directamente.
type Guard interface {
	// Name identifica la estrategia ("token" | "session").
	Name() string

	// Attempt valida credenciales con rate limiting y devuelve el outcome.
	// error sólo para fallas de infraestructura; los rechazos van en
	// Outcome.Reason salvo el rate limit, que es *autherr.RateLimitError.
	Attempt(ctx context.Context, creds Credentials) (*Outcome, error)

	// Login emite el artefacto de la estrategia para un principal ya
	// autenticado por fuera del flujo de credenciales (canje de
	// remember-token, impersonación administrativa). No toca el rate
	// limiter; sí re-chequea que la cuenta siga activa en el tenant.
	Login(ctx context.Context, p *core.Principal, tenantID string) (*Outcome, error)

	// CompleteTwoFactor cierra un login pendiente con el token temporal y
	// un código TOTP o backup code. El token temporal es de un solo uso.
	CompleteTwoFactor(ctx context.Context, twoFactorToken, code string) (*Outcome, error)

	// User resuelve la identidad desde el bearer del request.
	User(ctx context.Context, bearer string) (*Identity, error)

	// Check reporta si el bearer resuelve a una identidad válida.
	Check(ctx context.Context, bearer string) bool

	// Logout invalida el bearer. Idempotente: repetirlo nunca falla.
	Logout(ctx context.Context, bearer string) error
}
