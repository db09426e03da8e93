package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/densematrix/idea-validator/pkg/pg"
)

// PostgresTransactionRepository stores the checkout ledger in the
// checkout_transactions table. Statements join the transaction carried in the
// context when the reconciler runs inside pg.RunInTx.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

const transactionColumns = `id, checkout_id, device_id, product_sku, amount_cents, currency, status,
	coalesce(external_order_id, ''), coalesce(raw_payload, 'null'::jsonb), created_at, completed_at`

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *Transaction) error {
	_, err := pg.Querier(ctx, r.pool).Exec(ctx,
		`INSERT INTO checkout_transactions
		   (id, checkout_id, device_id, product_sku, amount_cents, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID,
		tx.CheckoutID,
		tx.DeviceID,
		tx.ProductSKU,
		tx.AmountCents,
		tx.Currency,
		tx.Status,
		tx.CreatedAt,
	)
	return err
}

func (r *PostgresTransactionRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, error) {
	row := pg.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM checkout_transactions WHERE checkout_id = $1`,
		checkoutID,
	)
	return scanTransaction(row)
}

// CompletePending is a single-statement compare-and-set: the status guard in
// the WHERE clause means only one concurrent delivery observes a row change.
func (r *PostgresTransactionRepository) CompletePending(ctx context.Context, checkoutID string, completion Completion) (*Transaction, error) {
	row := pg.Querier(ctx, r.pool).QueryRow(ctx,
		`UPDATE checkout_transactions
		 SET status = $2,
		     external_order_id = nullif($3, ''),
		     raw_payload = $4,
		     completed_at = $5
		 WHERE checkout_id = $1 AND status = $6
		 RETURNING `+transactionColumns,
		checkoutID,
		StatusCompleted,
		completion.ExternalOrderID,
		completion.RawPayload,
		completion.CompletedAt,
		StatusPending,
	)
	tx, err := scanTransaction(row)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	// No pending row matched: distinguish unknown from already settled.
	if _, findErr := r.FindByCheckoutID(ctx, checkoutID); findErr != nil {
		return nil, findErr
	}
	return nil, ErrNotPending
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	err := row.Scan(
		&tx.ID,
		&tx.CheckoutID,
		&tx.DeviceID,
		&tx.ProductSKU,
		&tx.AmountCents,
		&tx.Currency,
		&tx.Status,
		&tx.ExternalOrderID,
		&tx.RawPayload,
		&tx.CreatedAt,
		&tx.CompletedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
