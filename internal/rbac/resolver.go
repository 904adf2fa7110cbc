// Package rbac resuelve roles y permisos efectivos de un principal
// dentro de un tenant. Semántica aditiva pura: sólo grants, sin deny.
package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/validation"
)

type Resolver struct {
	repo core.RBACRepository
}

func NewResolver(repo core.RBACRepository) *Resolver {
	return &Resolver{repo: repo}
}

// GetRoles retorna los nombres de rol del principal en el tenant.
// Membresía inactiva en el tenant = sin roles.
func (r *Resolver) GetRoles(ctx context.Context, p *core.Principal, tenantID string) ([]string, error) {
	if !p.ActiveIn(tenantID) {
		return nil, nil
	}
	roles, err := r.repo.GetPrincipalRoles(ctx, tenantID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, ro := range roles {
		names = append(names, ro.Name)
	}
	return names, nil
}

// GetPermissions = (permisos de cada rol del principal en el tenant) ∪
// (permisos directos en el tenant), deduplicado y ordenado. Los permisos
// de otros tenants jamás entran al set.
func (r *Resolver) GetPermissions(ctx context.Context, p *core.Principal, tenantID string) ([]string, error) {
	if !p.ActiveIn(tenantID) {
		return nil, nil
	}

	set := map[string]struct{}{}

	roles, err := r.repo.GetPrincipalRoles(ctx, tenantID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles: %w", err)
	}
	for _, ro := range roles {
		perms, err := r.repo.GetRolePermissions(ctx, tenantID, ro.Name)
		if err != nil {
			return nil, fmt.Errorf("rbac: role perms: %w", err)
		}
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
	}

	direct, err := r.repo.GetDirectPermissions(ctx, tenantID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("rbac: direct perms: %w", err)
	}
	for _, perm := range direct {
		set[perm] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out, nil
}

// HasRole es un test de membresía simple.
func (r *Resolver) HasRole(ctx context.Context, p *core.Principal, tenantID, role string) (bool, error) {
	names, err := r.GetRoles(ctx, p, tenantID)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == role {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission es un test de membresía sobre el set efectivo.
func (r *Resolver) HasPermission(ctx context.Context, p *core.Principal, tenantID, permission string) (bool, error) {
	perms, err := r.GetPermissions(ctx, p, tenantID)
	if err != nil {
		return false, err
	}
	for _, perm := range perms {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}

// Authorize falla con AuthorizationError si el principal no tiene el
// permiso en el tenant. Un nombre de permiso malformado se niega sin
// consultar el repositorio.
func (r *Resolver) Authorize(ctx context.Context, p *core.Principal, tenantID, permission string) error {
	if !validation.ValidPermissionName(permission) {
		return fmt.Errorf("%w: %s", autherr.ErrPermissionDenied, permission)
	}
	ok, err := r.HasPermission(ctx, p, tenantID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", autherr.ErrPermissionDenied, permission)
	}
	return nil
}
