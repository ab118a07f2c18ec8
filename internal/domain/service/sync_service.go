package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/repository"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/useCases"
	"github.com/Mastero4ek/bull-diary-sub002/internal/exchange"
	"github.com/Mastero4ek/bull-diary-sub002/internal/infrastructure/queue"
)

// Progress checkpoints for the two sequential streams. Page-by-page
// progress advances toward the cap but only the stream's completion
// reaches the checkpoint itself, keeping observed values monotonic.
const (
	ordersProgressCap       = 49
	ordersProgressDone      = 50
	transactionsProgressCap = 99
	progressPageStep        = 7
)

// SyncService is the orchestrator of one sync run: it resolves
// credentials, drives the exchange adapter page by page, merges records
// into the durable store with duplicate-skipping, advances the progress
// tracker and invalidates derived aggregate caches.
//
// The two data streams (orders, then transactions) run strictly
// sequentially: the client needs a single monotonic progress percentage
// and both streams share the same rate-limited credentials. There is no
// per-user lock; the store's unique constraints are the concurrency
// backstop, so a racing duplicate insert is observed as a skip.
type SyncService struct {
	registry     *exchange.Registry
	resolver     *CredentialResolver
	orders       repository.OrderStore
	transactions repository.TransactionStore
	cache        repository.AggregateCache
	progress     *ProgressTracker
	producer     queue.SyncEventProducer // optional, may be nil
	logger       *slog.Logger
	clearDelay   time.Duration
}

func NewSyncService(
	registry *exchange.Registry,
	resolver *CredentialResolver,
	orders repository.OrderStore,
	transactions repository.TransactionStore,
	cache repository.AggregateCache,
	progress *ProgressTracker,
	producer queue.SyncEventProducer,
	clearDelay time.Duration,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	if clearDelay <= 0 {
		clearDelay = 10 * time.Second
	}
	return &SyncService{
		registry:     registry,
		resolver:     resolver,
		orders:       orders,
		transactions: transactions,
		cache:        cache,
		progress:     progress,
		producer:     producer,
		logger:       logger,
		clearDelay:   clearDelay,
	}
}

var _ useCases.SyncService = (*SyncService)(nil)

// SyncExchangeData runs one full sync. An error return means the run
// never started (unknown exchange, credentials) and progress stayed
// idle; once the run starts, stream failures surface through the
// summary's flags and the terminal error progress state instead.
func (s *SyncService) SyncExchangeData(ctx context.Context, userID, exchangeName string, window model.TimeRange) (*model.SyncSummary, error) {
	adapter, err := s.registry.Resolve(exchangeName)
	if err != nil {
		return nil, err
	}

	creds, err := s.resolver.Resolve(ctx, userID, exchangeName)
	if err != nil {
		return nil, err
	}

	summary := &model.SyncSummary{
		RunID:     uuid.NewString(),
		UserID:    userID,
		Exchange:  adapter.Name(),
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With("run_id", summary.RunID, "user_id", userID, "exchange", adapter.Name())
	log.Info("sync started", "start", window.Start, "end", window.End)

	s.progress.Set(userID, 0, model.StatusLoading, "syncing orders")

	summary.Orders, err = s.syncOrders(ctx, adapter, *creds, userID, window)
	if err != nil {
		log.Error("orders stream failed", "error", err,
			"inserted", summary.Orders.DataCount, "seen", summary.Orders.TotalFromAPI)
		s.finish(userID, summary, err)
		return summary, nil
	}

	s.progress.Set(userID, ordersProgressDone, model.StatusLoading, "preparing transactions")

	summary.Transactions, err = s.syncTransactions(ctx, adapter, *creds, userID, window)
	if err != nil {
		log.Error("transactions stream failed", "error", err,
			"inserted", summary.Transactions.DataCount, "seen", summary.Transactions.TotalFromAPI)
		s.finish(userID, summary, err)
		return summary, nil
	}

	s.progress.Set(userID, 100, model.StatusSuccess, "sync complete")
	s.finish(userID, summary, nil)

	log.Info("sync finished",
		"orders_inserted", summary.Orders.DataCount,
		"orders_seen", summary.Orders.TotalFromAPI,
		"transactions_inserted", summary.Transactions.DataCount,
		"transactions_seen", summary.Transactions.TotalFromAPI,
	)
	return summary, nil
}

// syncOrders drives the orders stream to exhaustion, one page in flight
// at a time. Already-stored records are counted but skipped.
func (s *SyncService) syncOrders(ctx context.Context, adapter exchange.Adapter, creds model.Credential, userID string, window model.TimeRange) (model.StreamResult, error) {
	var res model.StreamResult
	cursor := exchange.Cursor("")
	pct := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := adapter.FetchOrders(ctx, creds, window, cursor)
		if err != nil {
			return res, err
		}

		for _, order := range page.Orders {
			order.UserID = userID
			order.Exchange = adapter.Name()
			res.TotalFromAPI++

			inserted, err := s.orders.InsertOrder(ctx, order)
			if err != nil {
				return res, err
			}
			if inserted {
				res.DataCount++
			}
		}

		pct = min(ordersProgressCap, pct+progressPageStep)
		s.progress.Set(userID, pct, model.StatusLoading, "syncing orders")

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	res.Synced = true
	return res, nil
}

// syncTransactions mirrors syncOrders for the transaction stream.
func (s *SyncService) syncTransactions(ctx context.Context, adapter exchange.Adapter, creds model.Credential, userID string, window model.TimeRange) (model.StreamResult, error) {
	var res model.StreamResult
	cursor := exchange.Cursor("")
	pct := ordersProgressDone

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := adapter.FetchTransactions(ctx, creds, window, cursor)
		if err != nil {
			return res, err
		}

		for _, tx := range page.Transactions {
			tx.UserID = userID
			tx.Exchange = adapter.Name()
			res.TotalFromAPI++

			inserted, err := s.transactions.InsertTransaction(ctx, tx)
			if err != nil {
				return res, err
			}
			if inserted {
				res.DataCount++
			}
		}

		pct = min(transactionsProgressCap, pct+progressPageStep)
		s.progress.Set(userID, pct, model.StatusLoading, "syncing transactions")

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	res.Synced = true
	return res, nil
}

// finish is the single tail for every run that started: terminal
// progress on failure, one coarse cache invalidation (success or
// partial — inserted rows are retained either way), the published sync
// event, and the scheduled progress clearing.
func (s *SyncService) finish(userID string, summary *model.SyncSummary, streamErr error) {
	summary.FinishedAt = time.Now().UTC()

	if streamErr != nil {
		s.progress.Set(userID, s.progress.Get(userID).Progress, model.StatusError, streamErr.Error())
	}

	// The request context may already be gone; invalidation and event
	// publishing run on their own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.cache.DeleteByPrefix(ctx, pnlCachePrefix(userID, summary.Exchange))

	if s.producer != nil {
		if err := s.producer.PublishSyncEvent(ctx, queue.EventFromSummary(summary)); err != nil {
			s.logger.Warn("failed to publish sync event", "run_id", summary.RunID, "error", err)
		}
	}

	s.progress.ClearAfter(userID, s.clearDelay)
}

// pnlCachePrefix is the aggregate-key namespace a sync run invalidates
// for a user+exchange pair.
func pnlCachePrefix(userID, exchange string) string {
	return "pnl:" + userID + ":" + exchange + ":"
}
