package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexaerp/authd/internal/store/core"
)

// ─── PrincipalRepository ───

type principalRepo struct{ pool *pgxpool.Pool }

func (r *principalRepo) GetByEmail(ctx context.Context, tenantID, email string) (*core.Principal, error) {
	const query = `
		SELECT p.id, p.email, p.name, p.password_hash, p.active, p.remember_token_hash, p.created_at
		FROM principal p
		JOIN tenant_membership tm ON tm.principal_id = p.id
		WHERE tm.tenant_id = $1 AND lower(p.email) = lower($2)
	`
	p, err := r.scanOne(ctx, query, tenantID, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return r.withMemberships(ctx, p)
}

func (r *principalRepo) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	const query = `
		SELECT id, email, name, password_hash, active, remember_token_hash, created_at
		FROM principal WHERE id = $1
	`
	p, err := r.scanOne(ctx, query, id)
	if err != nil {
		return nil, err
	}
	return r.withMemberships(ctx, p)
}

func (r *principalRepo) EmailExistsInTenant(ctx context.Context, email, tenantID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM principal p
			JOIN tenant_membership tm ON tm.principal_id = p.id
			WHERE tm.tenant_id = $1 AND lower(p.email) = lower($2)
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, tenantID, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

func (r *principalRepo) UpdateRememberToken(ctx context.Context, principalID string, tokenHash *string) error {
	const query = `UPDATE principal SET remember_token_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, principalID, tokenHash)
	return err
}

func (r *principalRepo) scanOne(ctx context.Context, query string, args ...any) (*core.Principal, error) {
	var p core.Principal
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Active, &p.RememberTokenHash, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *principalRepo) withMemberships(ctx context.Context, p *core.Principal) (*core.Principal, error) {
	const query = `SELECT tenant_id, active FROM tenant_membership WHERE principal_id = $1`
	rows, err := r.pool.Query(ctx, query, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	p.Memberships = map[string]bool{}
	for rows.Next() {
		var tid string
		var active bool
		if err := rows.Scan(&tid, &active); err != nil {
			return nil, err
		}
		p.Memberships[tid] = active
	}
	return p, rows.Err()
}

// ─── TenantRepository ───

type tenantRepo struct{ pool *pgxpool.Pool }

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*core.Tenant, error) {
	const query = `SELECT id, code, name, active, created_at FROM tenant WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *tenantRepo) GetByCode(ctx context.Context, code string) (*core.Tenant, error) {
	const query = `SELECT id, code, name, active, created_at FROM tenant WHERE code = $1`
	return r.scanOne(ctx, query, code)
}

func (r *tenantRepo) scanOne(ctx context.Context, query string, args ...any) (*core.Tenant, error) {
	var t core.Tenant
	err := r.pool.QueryRow(ctx, query, args...).Scan(&t.ID, &t.Code, &t.Name, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
