package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var _ EventPruner = (*stubPruner)(nil)

func TestCleanupWorker_PruneBefore_Batches(t *testing.T) {
	t.Parallel()

	pruner := &stubPruner{
		pruneResults: []int{2, 2, 1},
	}

	worker := NewCleanupWorker(pruner, WithBatchSize(2))

	deleted, err := worker.PruneBefore(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}

	if calls := pruner.calls(); calls != 3 {
		t.Fatalf("unexpected prune calls: got=%d want=3", calls)
	}
}

func TestCleanupWorker_PruneBefore_Error(t *testing.T) {
	t.Parallel()

	pruner := &stubPruner{
		pruneErrors: []error{errors.New("boom")},
	}

	worker := NewCleanupWorker(pruner, WithBatchSize(10))

	deleted, err := worker.PruneBefore(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected PruneBefore error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	pruner := &stubPruner{
		pruneResults: []int{0, 0, 0},
	}

	worker := NewCleanupWorker(
		pruner,
		WithInterval(5*time.Millisecond),
		WithBatchSize(10),
		WithRetention(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := pruner.calls(); calls == 0 {
		t.Fatal("expected cleanup to be called at least once")
	}
}

func TestCleanupWorker_Defaults(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(&stubPruner{}, WithBatchSize(-1), WithInterval(0), WithRetention(0))

	if worker.batchSize != defaultCleanupBatchSize {
		t.Errorf("expected default batch size, got %d", worker.batchSize)
	}
	if worker.interval != defaultCleanupInterval {
		t.Errorf("expected default interval, got %s", worker.interval)
	}
	if worker.retention != defaultRetention {
		t.Errorf("expected default retention, got %s", worker.retention)
	}
}

type stubPruner struct {
	mu sync.Mutex

	pruneResults []int
	pruneErrors  []error
	callCount    int
}

func (s *stubPruner) PruneProcessedEvents(_ context.Context, _ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.pruneErrors) > 0 {
		err := s.pruneErrors[0]
		s.pruneErrors = s.pruneErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.pruneResults) == 0 {
		return 0, nil
	}
	deleted := s.pruneResults[0]
	s.pruneResults = s.pruneResults[1:]
	return deleted, nil
}

func (s *stubPruner) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
