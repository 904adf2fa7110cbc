package core

import "time"

// Tenant es la entidad hoja de aislamiento. Los principals la referencian
// por ID; nunca al revés.
type Tenant struct {
	ID        string
	Code      string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Principal es la identidad autenticable. Nunca mantiene una conexión
// viva al store; se muta sólo a través de operaciones explícitas del
// repositorio.
type Principal struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Active            bool
	RememberTokenHash *string
	// Memberships: tenant id -> flag activo dentro de ese tenant.
	Memberships map[string]bool
	CreatedAt   time.Time
}

// ActiveIn reporta si el principal tiene membresía activa en el tenant.
func (p *Principal) ActiveIn(tenantID string) bool {
	return p != nil && p.Memberships[tenantID]
}

// Role es tenant-scoped; sus permisos viven en la join role_permission.
type Role struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}

// Permission con tag de módulo (ej: "sales.create" → módulo "sales").
type Permission struct {
	Name   string
	Module string
}

// TwoFactorCredential es el registro 2FA de un principal.
// Unset → Pending (enable) → Active (confirm) → Unset (disable).
type TwoFactorCredential struct {
	PrincipalID     string
	SecretEncrypted string
	Confirmed       bool
	LastCounterUsed *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
