package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexaerp/authd/internal/store/core"
)

// ─── OwnershipChecker ───

// resourceTables mapea nombres de recurso del request a su tabla dueña.
// Allow-list cerrada: un recurso no listado nunca llega a una query.
var resourceTables = map[string]string{
	"customers": "customer",
	"products":  "product",
	"orders":    "sales_order",
	"invoices":  "invoice",
}

type ownershipChecker struct{ pool *pgxpool.Pool }

func (c *ownershipChecker) BelongsToTenant(ctx context.Context, resource, resourceID, tenantID string) (bool, error) {
	table, ok := resourceTables[resource]
	if !ok {
		return false, fmt.Errorf("pg: unknown resource %q: %w", resource, core.ErrInvalid)
	}

	// table viene de la allow-list, nunca del request
	query := fmt.Sprintf(`SELECT tenant_id FROM %s WHERE id = $1`, table)

	var owner string
	err := c.pool.QueryRow(ctx, query, resourceID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, core.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return owner == tenantID, nil
}
