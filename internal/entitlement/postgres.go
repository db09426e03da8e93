package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/densematrix/idea-validator/pkg/pg"
)

// PostgresRepository stores entitlement records in the entitlements table.
// Statements run against the transaction carried in the context when one is
// active, so a webhook grant joins the reconciler's transaction.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const entitlementColumns = `id, device_id, tokens_total, tokens_used, free_trial_used,
	coalesce(last_payment_id, ''), coalesce(last_product_sku, ''), created_at, updated_at`

func (r *PostgresRepository) Find(ctx context.Context, deviceID string) (*Record, error) {
	row := pg.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE device_id = $1`,
		deviceID,
	)
	return scanRecord(row)
}

func (r *PostgresRepository) Create(ctx context.Context, deviceID string) (*Record, error) {
	row := pg.Querier(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO entitlements (id, device_id)
		 VALUES ($1, $2)
		 ON CONFLICT (device_id) DO NOTHING
		 RETURNING `+entitlementColumns,
		uuid.New(),
		deviceID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, ErrNotFound) || pg.IsDuplicateKeyError(err) {
		// Lost the insert race; the concurrent writer's row is the record.
		return r.Find(ctx, deviceID)
	}
	return rec, err
}

func (r *PostgresRepository) Update(ctx context.Context, rec *Record) error {
	tag, err := pg.Querier(ctx, r.pool).Exec(ctx,
		`UPDATE entitlements
		 SET tokens_total = $2,
		     tokens_used = $3,
		     free_trial_used = $4,
		     last_payment_id = nullif($5, ''),
		     last_product_sku = nullif($6, ''),
		     updated_at = now()
		 WHERE device_id = $1`,
		rec.DeviceID,
		rec.TokensTotal,
		rec.TokensUsed,
		rec.FreeTrialUsed,
		rec.LastPaymentID,
		rec.LastProductSKU,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.DeviceID,
		&rec.TokensTotal,
		&rec.TokensUsed,
		&rec.FreeTrialUsed,
		&rec.LastPaymentID,
		&rec.LastProductSKU,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
