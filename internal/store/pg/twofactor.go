package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexaerp/authd/internal/store/core"
)

// ─── TwoFactorRepository ───

type twoFactorRepo struct{ pool *pgxpool.Pool }

func (r *twoFactorRepo) UpsertPending(ctx context.Context, principalID, secretEnc string) error {
	const query = `
		INSERT INTO two_factor (principal_id, secret_encrypted, confirmed, created_at, updated_at)
		VALUES ($1, $2, false, NOW(), NOW())
		ON CONFLICT (principal_id) DO UPDATE
			SET secret_encrypted = $2, confirmed = false, last_counter_used = NULL, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, principalID, secretEnc)
	return err
}

func (r *twoFactorRepo) Confirm(ctx context.Context, principalID string) error {
	const query = `UPDATE two_factor SET confirmed = true, updated_at = NOW() WHERE principal_id = $1`
	tag, err := r.pool.Exec(ctx, query, principalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *twoFactorRepo) Get(ctx context.Context, principalID string) (*core.TwoFactorCredential, error) {
	const query = `
		SELECT principal_id, secret_encrypted, confirmed, last_counter_used, created_at, updated_at
		FROM two_factor WHERE principal_id = $1
	`
	var tf core.TwoFactorCredential
	err := r.pool.QueryRow(ctx, query, principalID).Scan(
		&tf.PrincipalID, &tf.SecretEncrypted, &tf.Confirmed, &tf.LastCounterUsed, &tf.CreatedAt, &tf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tf, nil
}

func (r *twoFactorRepo) Delete(ctx context.Context, principalID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_code WHERE principal_id = $1`, principalID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM two_factor WHERE principal_id = $1`, principalID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *twoFactorRepo) UpdateLastCounter(ctx context.Context, principalID string, counter int64) error {
	const query = `UPDATE two_factor SET last_counter_used = $2, updated_at = NOW() WHERE principal_id = $1`
	_, err := r.pool.Exec(ctx, query, principalID, counter)
	return err
}

func (r *twoFactorRepo) SetBackupCodes(ctx context.Context, principalID string, hashes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_code WHERE principal_id = $1`, principalID); err != nil {
		return err
	}
	for _, hash := range hashes {
		_, err := tx.Exec(ctx,
			`INSERT INTO two_factor_backup_code (principal_id, code_hash, created_at) VALUES ($1, $2, NOW())`,
			principalID, hash)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *twoFactorRepo) UseBackupCode(ctx context.Context, principalID, hash string) (bool, error) {
	// DELETE único: el código se consume antes de construir la respuesta
	// y dos requests concurrentes nunca lo consumen dos veces.
	const query = `DELETE FROM two_factor_backup_code WHERE principal_id = $1 AND code_hash = $2`
	tag, err := r.pool.Exec(ctx, query, principalID, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
