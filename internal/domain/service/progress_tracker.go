// Package service provides implementations of domain services that implement core business logic
// This package depends only on domain models and repository interfaces (not implementations)
package service

import (
	"sync"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/useCases"
)

// ProgressListener is notified on every progress transition, used to
// push updates to the WebSocket layer.
type ProgressListener func(userID string, progress model.SyncProgress)

// ProgressTracker is the process-wide, per-user sync state machine the
// client polls. At most one live entry exists per user; a new run for
// the same user overwrites rather than appends. State is not persisted:
// after a restart a polling client simply sees idle again.
type ProgressTracker struct {
	mu       sync.RWMutex
	entries  map[string]model.SyncProgress
	listener ProgressListener
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		entries: make(map[string]model.SyncProgress),
	}
}

var _ useCases.ProgressReader = (*ProgressTracker)(nil)

// SetListener installs the transition listener. Safe to call while
// runs are in flight; transitions already past the read keep the old
// listener.
func (t *ProgressTracker) SetListener(fn ProgressListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = fn
}

// Set overwrites the user's entry with the given state. No history is kept.
func (t *ProgressTracker) Set(userID string, progress int, status model.SyncStatus, message string) {
	entry := model.SyncProgress{Progress: progress, Status: status, Message: message}

	t.mu.Lock()
	t.entries[userID] = entry
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		listener(userID, entry)
	}
}

// Get returns the user's current state, or a default idle state if absent.
func (t *ProgressTracker) Get(userID string) model.SyncProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if entry, ok := t.entries[userID]; ok {
		return entry
	}
	return model.SyncProgress{Progress: 0, Status: model.StatusIdle}
}

// Clear removes the user's entry.
func (t *ProgressTracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}

// ClearAfter schedules removal of the user's entry after the grace delay,
// so a client that polls once more after seeing completion still gets the
// terminal state. If a new run has started for the user in the meantime,
// the entry is left alone.
func (t *ProgressTracker) ClearAfter(userID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		entry, ok := t.entries[userID]
		if !ok {
			return
		}
		if entry.Status == model.StatusSuccess || entry.Status == model.StatusError {
			delete(t.entries, userID)
		}
	})
}
