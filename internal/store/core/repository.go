package core

import "context"

// Store agrupa los repositorios del subsistema. Los adapters (pg, memory)
// implementan todo el conjunto; los services reciben sólo lo que usan.
type Store interface {
	Principals() PrincipalRepository
	Tenants() TenantRepository
	RBAC() RBACRepository
	TwoFactor() TwoFactorRepository
	Ownership() OwnershipChecker

	Ping(ctx context.Context) error
	Close()
}

// PrincipalRepository: lookups de identidad puros, sin conocimiento de
// módulos de negocio.
type PrincipalRepository interface {
	// GetByEmail busca por email dentro de un tenant (membresía requerida).
	GetByEmail(ctx context.Context, tenantID, email string) (*Principal, error)

	// GetByID carga un principal con sus membresías.
	GetByID(ctx context.Context, id string) (*Principal, error)

	// EmailExistsInTenant reporta si el email ya está tomado en el tenant.
	EmailExistsInTenant(ctx context.Context, email, tenantID string) (bool, error)

	// UpdateRememberToken persiste el hash del remember-token (nil lo borra).
	UpdateRememberToken(ctx context.Context, principalID string, tokenHash *string) error
}

type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByCode(ctx context.Context, code string) (*Tenant, error)
}

// RBACRepository expone las joins Principal↔Role↔Permission por tenant.
type RBACRepository interface {
	// GetPrincipalRoles: roles del principal dentro del tenant.
	GetPrincipalRoles(ctx context.Context, tenantID, principalID string) ([]Role, error)

	// GetRolePermissions: permisos otorgados a un rol del tenant.
	GetRolePermissions(ctx context.Context, tenantID, roleName string) ([]string, error)

	// GetDirectPermissions: permisos otorgados directamente al principal
	// dentro del tenant (sin pasar por rol).
	GetDirectPermissions(ctx context.Context, tenantID, principalID string) ([]string, error)
}

// TwoFactorRepository persiste el credential 2FA y sus backup codes.
type TwoFactorRepository interface {
	UpsertPending(ctx context.Context, principalID, secretEnc string) error
	Confirm(ctx context.Context, principalID string) error
	Get(ctx context.Context, principalID string) (*TwoFactorCredential, error)
	Delete(ctx context.Context, principalID string) error
	UpdateLastCounter(ctx context.Context, principalID string, counter int64) error

	// SetBackupCodes reemplaza el set completo (hashes, nunca en claro).
	SetBackupCodes(ctx context.Context, principalID string, hashes []string) error

	// UseBackupCode consume un backup code en una sola operación atómica:
	// si el hash existe sin usar lo elimina y retorna true. Dos requests
	// concurrentes con el mismo código nunca consumen ambos.
	UseBackupCode(ctx context.Context, principalID, hash string) (bool, error)
}

// OwnershipChecker verifica que un recurso tenant-scoped pertenezca al
// tenant, contra la tabla dueña. Lo usa el enforcer antes de dejar correr
// el handler.
type OwnershipChecker interface {
	// BelongsToTenant retorna ErrNotFound si el recurso no existe y
	// false si existe pero pertenece a otro tenant.
	BelongsToTenant(ctx context.Context, resource, resourceID, tenantID string) (bool, error)
}
