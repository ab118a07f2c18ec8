package utils

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// RecordGenerator produces deterministic normalized records for tests
// and demos. Records are spaced one minute apart from the given start so
// window-boundary behavior is easy to reason about.
type RecordGenerator struct{}

// NewRecordGenerator creates a new record generator
func NewRecordGenerator() *RecordGenerator {
	return &RecordGenerator{}
}

// GenerateOrders creates count orders starting at start, one per minute.
func (g *RecordGenerator) GenerateOrders(exchange string, count int, start time.Time) []*model.Order {
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"}
	sides := []string{"buy", "sell"}

	orders := make([]*model.Order, count)
	for i := 0; i < count; i++ {
		closeTime := start.Add(time.Duration(i) * time.Minute)
		orders[i] = &model.Order{
			Exchange:   exchange,
			OrderID:    "ord-" + strconv.Itoa(i) + "-" + closeTime.Format("20060102150405"),
			Symbol:     symbols[i%len(symbols)],
			Side:       sides[i%2],
			Quantity:   decimal.NewFromInt(int64(1 + i%10)),
			EntryPrice: decimal.NewFromInt(int64(1000 + i*10)),
			ClosePrice: decimal.NewFromInt(int64(1010 + i*10)),
			Pnl:        decimal.NewFromInt(int64(10 - i%20)),
			Fee:        decimal.NewFromFloat(-0.5),
			OpenTime:   closeTime.Add(-time.Hour),
			CloseTime:  closeTime,
		}
	}
	return orders
}

// GenerateTransactions creates count transactions starting at start, one
// per minute, alternating inflows and outflows.
func (g *RecordGenerator) GenerateTransactions(exchange string, count int, start time.Time) []*model.Transaction {
	types := []string{"TRANSFER_IN", "TRANSFER_OUT", "SETTLEMENT", "TRADE"}

	txs := make([]*model.Transaction, count)
	for i := 0; i < count; i++ {
		amount := decimal.NewFromInt(int64(100 + i))
		if i%2 == 1 {
			amount = amount.Neg()
		}
		txs[i] = &model.Transaction{
			Exchange:        exchange,
			Type:            types[i%len(types)],
			Symbol:          "USDT",
			Amount:          amount,
			Fee:             decimal.NewFromFloat(-0.1),
			Balance:         decimal.NewFromInt(int64(10000 + i)),
			TransactionTime: start.Add(time.Duration(i) * time.Minute),
		}
	}
	return txs
}

// GenerateCredential creates a throwaway enabled credential.
func (g *RecordGenerator) GenerateCredential(exchange string) model.Credential {
	return model.Credential{
		Exchange:    exchange,
		APIKey:      "key-" + uuid.NewString(),
		APISecret:   "secret-" + uuid.NewString(),
		SyncEnabled: true,
	}
}
