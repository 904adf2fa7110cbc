// Package store expone el CredentialStore: lookups de identidad +
// verificación de password, sin conocimiento de módulos de negocio.
package store

import (
	"context"

	"github.com/nexaerp/authd/internal/security/password"
	"github.com/nexaerp/authd/internal/store/core"
)

// Credentials son las credenciales primarias de un intento de login.
type Credentials struct {
	TenantID string
	Email    string
	Password string
}

// CredentialStore resuelve principals y valida credenciales.
type CredentialStore struct {
	principals core.PrincipalRepository
}

func NewCredentialStore(principals core.PrincipalRepository) *CredentialStore {
	return &CredentialStore{principals: principals}
}

// RetrieveByCredentials busca el principal por email dentro del tenant.
// No valida el password; eso es ValidateCredentials.
func (s *CredentialStore) RetrieveByCredentials(ctx context.Context, creds Credentials) (*core.Principal, error) {
	return s.principals.GetByEmail(ctx, creds.TenantID, creds.Email)
}

// ValidateCredentials verifica el password contra el hash argon2id.
// Comparación en tiempo constante (ver security/password).
func (s *CredentialStore) ValidateCredentials(p *core.Principal, creds Credentials) bool {
	if p == nil || p.PasswordHash == "" {
		return false
	}
	return password.Verify(creds.Password, p.PasswordHash)
}

// RetrieveByID carga un principal por subject id (path de verificación
// de token).
func (s *CredentialStore) RetrieveByID(ctx context.Context, id string) (*core.Principal, error) {
	return s.principals.GetByID(ctx, id)
}

// EmailExistsInTenant reporta si el email ya existe en el tenant.
func (s *CredentialStore) EmailExistsInTenant(ctx context.Context, email, tenantID string) (bool, error) {
	return s.principals.EmailExistsInTenant(ctx, email, tenantID)
}

// UpdateRememberToken persiste (o borra, con nil) el hash del
// remember-token del principal.
func (s *CredentialStore) UpdateRememberToken(ctx context.Context, principalID string, tokenHash *string) error {
	return s.principals.UpdateRememberToken(ctx, principalID, tokenHash)
}
