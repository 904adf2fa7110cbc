package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexaerp/authd/internal/store/core"
)

// ─── RBACRepository ───
//
// Todas las queries filtran por tenant_id: los permisos nunca cruzan
// el scope del tenant.

type rbacRepo struct{ pool *pgxpool.Pool }

func (r *rbacRepo) GetPrincipalRoles(ctx context.Context, tenantID, principalID string) ([]core.Role, error) {
	const query = `
		SELECT ro.id, ro.tenant_id, ro.name, ro.created_at
		FROM role ro
		JOIN principal_role pr ON pr.role_id = ro.id
		WHERE ro.tenant_id = $1 AND pr.principal_id = $2
		ORDER BY ro.name
	`
	rows, err := r.pool.Query(ctx, query, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []core.Role
	for rows.Next() {
		var ro core.Role
		if err := rows.Scan(&ro.ID, &ro.TenantID, &ro.Name, &ro.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, ro)
	}
	return roles, rows.Err()
}

func (r *rbacRepo) GetRolePermissions(ctx context.Context, tenantID, roleName string) ([]string, error) {
	const query = `
		SELECT rp.permission
		FROM role_permission rp
		JOIN role ro ON ro.id = rp.role_id
		WHERE ro.tenant_id = $1 AND ro.name = $2
	`
	return r.stringList(ctx, query, tenantID, roleName)
}

func (r *rbacRepo) GetDirectPermissions(ctx context.Context, tenantID, principalID string) ([]string, error) {
	const query = `
		SELECT permission FROM principal_permission
		WHERE tenant_id = $1 AND principal_id = $2
	`
	return r.stringList(ctx, query, tenantID, principalID)
}

func (r *rbacRepo) stringList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
