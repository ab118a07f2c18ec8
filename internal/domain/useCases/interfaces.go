package useCases

import (
	"context"
	"net/http"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// SyncService drives one exchange synchronization run for a user.
type SyncService interface {
	// SyncExchangeData runs the orders stream and then the transactions
	// stream for the given window. It returns an error only when the run
	// could not start (validation, credentials, unknown exchange); a
	// failure mid-run is reported through the summary's stream flags and
	// the progress state instead.
	SyncExchangeData(ctx context.Context, userID, exchange string, window model.TimeRange) (*model.SyncSummary, error)
}

// ProgressReader exposes the per-user sync state for client polling.
type ProgressReader interface {
	Get(userID string) model.SyncProgress
}

// ProgressBroadcaster pushes progress transitions to connected clients.
type ProgressBroadcaster interface {
	BroadcastProgress(userID string, progress model.SyncProgress)
	Handler() http.HandlerFunc
}
