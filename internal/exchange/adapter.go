// Package exchange holds the adapter contract shared by every supported
// venue plus the per-venue implementations. Adapters translate a generic
// (credentials, window, cursor) request into exchange-specific paginated
// calls and map the native records into the normalized schema.
package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// Cursor is an opaque pagination token. Empty means "first page" on the
// way in and "end of stream" on the way out. Each adapter encodes its
// venue's pagination idiom (page token, page number or time bucket)
// into it.
type Cursor string

// OrderPage is one page of normalized orders plus the continuation cursor.
type OrderPage struct {
	Orders     []*model.Order
	NextCursor Cursor
}

// TransactionPage is one page of normalized transactions plus the
// continuation cursor.
type TransactionPage struct {
	Transactions []*model.Transaction
	NextCursor   Cursor
}

// Adapter is the capability every venue implements. Implementations are
// stateless and safe for concurrent use with different credentials.
// Identity fields (UserID, Exchange) on returned records are stamped by
// the orchestrator, not the adapter.
type Adapter interface {
	Name() string
	FetchOrders(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*OrderPage, error)
	FetchTransactions(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*TransactionPage, error)
}

// Registry resolves adapters by exchange name. It is built once at
// startup; an unknown name is a typed error, not a map miss.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters, keyed by their
// lowercased names.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Name())] = a
	}
	return &Registry{adapters: m}
}

// Resolve returns the adapter registered under name.
func (r *Registry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownExchange, name)
	}
	return a, nil
}

// Names lists the registered exchange names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
