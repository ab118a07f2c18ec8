package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/repository"
)

// PostgresRepository implements the OrderStore, TransactionStore and
// CredentialSource interfaces using Postgres as the backend. The compound
// unique constraints on the two record tables are the engine's
// idempotence boundary: a conflicting insert is reported as a skip, never
// as an error, which also makes the store the backstop for concurrent
// sync runs over the same window.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type PostgresConfig struct {
	DSN      string
	MinConns int
	MaxConns int
	Timeout  int
}

func NewPostgresRepository(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	// Ensure tables exist
	if err := createTablesIfNotExist(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresRepository{pool: pool, logger: logger}, nil
}

// Ensure PostgresRepository implements all required interfaces
var _ repository.OrderStore = (*PostgresRepository)(nil)
var _ repository.TransactionStore = (*PostgresRepository)(nil)
var _ repository.CredentialSource = (*PostgresRepository)(nil)

func createTablesIfNotExist(ctx context.Context, pool *pgxpool.Pool) error {
	// Orders: natural key (exchange, order_id, user_id)
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			exchange TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity NUMERIC NOT NULL,
			entry_price NUMERIC NOT NULL,
			close_price NUMERIC NOT NULL,
			pnl NUMERIC NOT NULL,
			fee NUMERIC NOT NULL,
			open_time TIMESTAMPTZ NOT NULL,
			close_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT orders_natural_key UNIQUE (exchange, order_id, user_id)
		)
	`)
	if err != nil {
		return err
	}

	// Transactions: natural key (exchange, transaction_time, type, user_id)
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			exchange TEXT NOT NULL,
			type TEXT NOT NULL,
			symbol TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			fee NUMERIC NOT NULL,
			balance NUMERIC NOT NULL,
			transaction_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT transactions_natural_key UNIQUE (exchange, transaction_time, type, user_id)
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exchange_credentials (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			exchange TEXT NOT NULL,
			api_key TEXT NOT NULL DEFAULT '',
			api_secret TEXT NOT NULL DEFAULT '',
			sync_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT exchange_credentials_user_exchange UNIQUE (user_id, exchange)
		)
	`)
	return err
}

// OrderStore interface implementation

// InsertOrder persists an order, treating a natural-key conflict as a
// normal "duplicate, skip" outcome.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order *model.Order) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO orders (
			user_id, exchange, order_id, symbol, side,
			quantity, entry_price, close_price, pnl, fee,
			open_time, close_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ON CONSTRAINT orders_natural_key DO NOTHING
	`,
		order.UserID,
		order.Exchange,
		order.OrderID,
		order.Symbol,
		order.Side,
		order.Quantity.String(),
		order.EntryPrice.String(),
		order.ClosePrice.String(),
		order.Pnl.String(),
		order.Fee.String(),
		order.OpenTime,
		order.CloseTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// CountOrders returns the number of stored orders for a user+exchange.
func (r *PostgresRepository) CountOrders(ctx context.Context, userID, exchange string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE user_id = $1 AND exchange = $2`,
		userID, exchange,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// TransactionStore interface implementation

// InsertTransaction persists a transaction with the same duplicate-skip
// semantics as InsertOrder.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, tx *model.Transaction) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (
			user_id, exchange, type, symbol,
			amount, fee, balance, transaction_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT transactions_natural_key DO NOTHING
	`,
		tx.UserID,
		tx.Exchange,
		tx.Type,
		tx.Symbol,
		tx.Amount.String(),
		tx.Fee.String(),
		tx.Balance.String(),
		tx.TransactionTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// CountTransactions returns the number of stored transactions for a
// user+exchange.
func (r *PostgresRepository) CountTransactions(ctx context.Context, userID, exchange string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE user_id = $1 AND exchange = $2`,
		userID, exchange,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// CredentialSource interface implementation

// GetCredentials returns every credential entry stored for the user.
func (r *PostgresRepository) GetCredentials(ctx context.Context, userID string) ([]model.Credential, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT exchange, api_key, api_secret, sync_enabled
		FROM exchange_credentials
		WHERE user_id = $1
		ORDER BY exchange
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var c model.Credential
		if err := rows.Scan(&c.Exchange, &c.APIKey, &c.APISecret, &c.SyncEnabled); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return creds, nil
}

// UpsertCredential stores or replaces one exchange credential entry.
// The sync engine itself only reads credentials; this write path exists
// for the account-settings surface and for integration tests.
func (r *PostgresRepository) UpsertCredential(ctx context.Context, userID string, cred model.Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO exchange_credentials (user_id, exchange, api_key, api_secret, sync_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT ON CONSTRAINT exchange_credentials_user_exchange
		DO UPDATE SET api_key = $3, api_secret = $4, sync_enabled = $5, updated_at = now()
	`, userID, cred.Exchange, cred.APIKey, cred.APISecret, cred.SyncEnabled)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// Ping verifies the connection is healthy.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
