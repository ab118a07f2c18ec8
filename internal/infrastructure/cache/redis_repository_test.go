package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/infrastructure/cache"
)

// newUnreachableRepo points at a port nothing listens on, so the
// constructor's ping fails and the repository self-disables.
func newUnreachableRepo() *cache.RedisRepository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.NewRedisRepository("127.0.0.1:1", "", 0, logger)
}

func TestRedisRepositoryDegradesWhenUnreachable(t *testing.T) {
	repo := newUnreachableRepo()

	if repo.Enabled() {
		t.Fatal("expected the cache to self-disable against an unreachable backend")
	}

	// Every operation must be a safe no-op, not a panic or an error.
	ctx := context.Background()
	repo.Set(ctx, "k", "v", time.Minute)
	if got := repo.Get(ctx, "k"); got != "" {
		t.Errorf("disabled cache returned a value: %q", got)
	}
	repo.Delete(ctx, "k")
	repo.DeleteByPrefix(ctx, "pnl:u1:bybit:")
}

func TestBuildKeyIsDeterministicAndOrderSensitive(t *testing.T) {
	repo := newUnreachableRepo()

	a := repo.BuildKey("bybit", "pnl", "u1", 2024, "BTCUSDT")
	b := repo.BuildKey("bybit", "pnl", "u1", 2024, "BTCUSDT")
	if a != b {
		t.Errorf("same inputs produced different keys: %q vs %q", a, b)
	}
	if a != "bybit:pnl:u1:2024:BTCUSDT" {
		t.Errorf("unexpected key shape: %q", a)
	}

	c := repo.BuildKey("bybit", "pnl", 2024, "u1", "BTCUSDT")
	if a == c {
		t.Error("parameter order must change the key")
	}
}
