package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"forumdigest/internal/digest"
	"forumdigest/internal/domain"
)

type blockingStore struct {
	mu      sync.Mutex
	scans   int
	release chan struct{}
}

func (s *blockingStore) UsersWithPending(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return nil, nil
}

func (s *blockingStore) PendingForUser(_ context.Context, _ int64) (domain.Mailbox, error) {
	return domain.Mailbox{}, nil
}

func (s *blockingStore) ClearAllPending(_ context.Context) error {
	return nil
}

func (s *blockingStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scans
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	cycle := digest.New(&blockingStore{release: make(chan struct{})}, nil, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := New(context.Background(), "not a cron spec", cycle,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(); err == nil {
		t.Fatalf("expected an invalid cron spec to be rejected")
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	cycle := digest.New(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := New(context.Background(), "0 * * * *", cycle, slog.New(slog.NewTextHandler(io.Discard, nil)))

	firstDone := make(chan struct{})
	go func() {
		s.runCycle()
		close(firstDone)
	}()

	// Wait until the first cycle is inside the store scan.
	deadline := time.After(5 * time.Second)
	for store.scanCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected the first cycle to start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A tick while the first cycle still holds the lock must not scan.
	s.runCycle()
	if got := store.scanCount(); got != 1 {
		t.Fatalf("expected the overlapping tick to be skipped, got %d scans", got)
	}

	close(store.release)

	select {
	case <-firstDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected the first cycle to finish")
	}

	// With the lock free again the next tick runs.
	s.runCycle()
	if got := store.scanCount(); got != 2 {
		t.Fatalf("expected the next tick to run, got %d scans", got)
	}
}
