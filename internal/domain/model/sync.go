package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credential holds one user's API access for a single exchange.
// Secrets arrive decrypted through the resolver's Decrypter hook;
// encryption-at-rest lives outside this service.
type Credential struct {
	Exchange    string
	APIKey      string
	APISecret   string
	SyncEnabled bool
}

// TimeRange is the absolute window a sync run covers.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Order is a normalized closed position record.
// Natural key: (exchange, order_id, user_id).
type Order struct {
	UserID     string
	Exchange   string
	OrderID    string
	Symbol     string
	Side       string // buy/sell
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ClosePrice decimal.Decimal
	Pnl        decimal.Decimal
	Fee        decimal.Decimal // signed cash effect, fees paid are negative
	OpenTime   time.Time
	CloseTime  time.Time
}

// Transaction is a normalized cash/asset movement.
// Natural key: (exchange, transaction_time, type, user_id).
type Transaction struct {
	UserID          string
	Exchange        string
	Type            string // TRANSFER_IN, TRADE, SETTLEMENT, ...
	Symbol          string
	Amount          decimal.Decimal // outflows negative, inflows positive
	Fee             decimal.Decimal
	Balance         decimal.Decimal
	TransactionTime time.Time
}

// SyncStatus is the lifecycle state of one user's sync run.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusLoading SyncStatus = "loading"
	StatusSuccess SyncStatus = "success"
	StatusError   SyncStatus = "error"
)

// SyncProgress is the per-user state polled by the client.
// It lives only in process memory; a restart resets it to idle.
type SyncProgress struct {
	Progress int
	Status   SyncStatus
	Message  string
}

// StreamResult reports one data stream (orders or transactions) of a run.
// DataCount is the number of newly inserted records, TotalFromAPI counts
// everything the exchange returned including duplicates, so the caller
// can tell "nothing new" apart from "exchange returned nothing".
type StreamResult struct {
	Synced       bool
	DataCount    int
	TotalFromAPI int
}

// SyncSummary is the final report of one sync run.
type SyncSummary struct {
	RunID        string
	UserID       string
	Exchange     string
	Orders       StreamResult
	Transactions StreamResult
	StartedAt    time.Time
	FinishedAt   time.Time
}

// TotalSynced is the number of rows this run added across both streams.
func (s *SyncSummary) TotalSynced() int {
	return s.Orders.DataCount + s.Transactions.DataCount
}

// Success reports whether both streams ran to completion.
func (s *SyncSummary) Success() bool {
	return s.Orders.Synced && s.Transactions.Synced
}
