// Package repository defines all the repository interfaces used by domain services
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations
package repository

import (
	"context"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// OrderStore is the durable, append-only collection of normalized orders.
// Implementations must enforce a uniqueness constraint over the natural key
// (exchange, order_id, user_id).
type OrderStore interface {
	// InsertOrder persists an order. A natural-key conflict is a normal
	// outcome: the record is skipped and inserted=false is returned.
	InsertOrder(ctx context.Context, order *model.Order) (inserted bool, err error)

	// CountOrders returns the number of stored orders for a user+exchange.
	CountOrders(ctx context.Context, userID, exchange string) (int64, error)
}

// TransactionStore is the durable, append-only collection of normalized
// transactions with a uniqueness constraint over
// (exchange, transaction_time, type, user_id).
type TransactionStore interface {
	// InsertTransaction persists a transaction, skipping duplicates the
	// same way InsertOrder does.
	InsertTransaction(ctx context.Context, tx *model.Transaction) (inserted bool, err error)

	// CountTransactions returns the number of stored transactions for a
	// user+exchange.
	CountTransactions(ctx context.Context, userID, exchange string) (int64, error)
}

// CredentialSource provides a user's stored exchange credentials.
// Decryption of secrets is layered on top by the credential resolver.
type CredentialSource interface {
	// GetCredentials returns every credential entry stored for the user.
	// An empty slice means the user has configured nothing.
	GetCredentials(ctx context.Context, userID string) ([]model.Credential, error)
}

// AggregateCache fronts expensive aggregate queries with a key-value
// cache. Correctness must never depend on it: when the backing store is
// unreachable every operation degrades to a no-op cache miss instead of
// returning an error.
type AggregateCache interface {
	// Get returns the cached value for key, or "" when absent or when the
	// cache is unavailable.
	Get(ctx context.Context, key string) string

	// Set stores value under key with the given TTL. Best effort.
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Delete removes a single key. Best effort.
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes every key starting with prefix. Used for
	// coarse-grained invalidation after a sync run, since a run can affect
	// an unbounded number of derived aggregate keys.
	DeleteByPrefix(ctx context.Context, prefix string)

	// BuildKey composes a deterministic, order-sensitive cache key from an
	// exchange, a method name and the query parameters.
	BuildKey(exchange, method string, params ...any) string
}
