// Package autherr define la taxonomía de errores del subsistema de
// autenticación/autorización. Los handlers HTTP mapean estos errores a
// respuestas genéricas (401/403/429) sin filtrar detalle interno.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Categorías raíz. Los errores concretos las envuelven, so callers can
// match con errors.Is sin importar la causa específica.
var (
	// ErrAuthentication: credenciales malas, token inválido/expirado/revocado,
	// cuenta bloqueada. Nunca se expone la causa concreta al caller.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization: rol o permiso faltante para la operación.
	ErrAuthorization = errors.New("authorization failed")

	// ErrTenantIsolation: intento de acceso o fuga cross-tenant.
	// Siempre fatal al request; se loguea como incidente de seguridad.
	ErrTenantIsolation = errors.New("tenant isolation violation")

	// ErrRateLimited: demasiados intentos. Temporal.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Errores de autenticación concretos. Todos colapsan a ErrAuthentication
// hacia afuera; la distinción existe sólo para logging interno.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrAccountDisabled    = fmt.Errorf("%w: account disabled", ErrAuthentication)
	ErrAccountLocked      = fmt.Errorf("%w: account locked", ErrAuthentication)
	ErrTwoFactorCode      = fmt.Errorf("%w: two-factor code rejected", ErrAuthentication)
)

// ErrPermissionDenied es el error de Authorize cuando falta el permiso.
var ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrAuthorization)

// RateLimitError lleva la ventana de reintento. Comunica cuándo reintentar
// pero nunca cuál identidad (email vs IP) disparó el límite.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ConfigError indica configuración inválida detectada en el arranque
// (ej: signing key demasiado corta). Fatal, nunca recuperable en runtime.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
