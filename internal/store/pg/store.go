// Package pg implementa core.Store sobre Postgres con pgx.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexaerp/authd/internal/store/core"
)

type Store struct {
	pool *pgxpool.Pool

	principals *principalRepo
	tenants    *tenantRepo
	rbac       *rbacRepo
	twofactor  *twoFactorRepo
	ownership  *ownershipChecker
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	return &Store{
		pool:       pool,
		principals: &principalRepo{pool: pool},
		tenants:    &tenantRepo{pool: pool},
		rbac:       &rbacRepo{pool: pool},
		twofactor:  &twoFactorRepo{pool: pool},
		ownership:  &ownershipChecker{pool: pool},
	}, nil
}

func (s *Store) Principals() core.PrincipalRepository { return s.principals }
func (s *Store) Tenants() core.TenantRepository       { return s.tenants }
func (s *Store) RBAC() core.RBACRepository            { return s.rbac }
func (s *Store) TwoFactor() core.TwoFactorRepository  { return s.twofactor }
func (s *Store) Ownership() core.OwnershipChecker     { return s.ownership }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }
