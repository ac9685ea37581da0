package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

func makeTransaction(id, reference string) domain.Transaction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Transaction{
		ID:            id,
		Status:        domain.StatusPending,
		AmountInCents: 10000,
		Currency:      "COP",
		ProductID:     "product-1",
		Reference:     reference,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSaveAndFindRoundTrip(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	tx := makeTransaction("tx-1", "TX-1")
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.FindByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got != tx {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, tx)
	}

	got, err = repo.FindByReference(ctx, "TX-1")
	if err != nil {
		t.Fatalf("find by reference: %v", err)
	}
	if got.ID != "tx-1" {
		t.Fatalf("expected tx-1, got %s", got.ID)
	}
}

func TestSaveUpsertsByID(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	tx := makeTransaction("tx-1", "TX-1")
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	tx.Status = domain.StatusApproved
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := repo.FindByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", got.Status)
	}
}

func TestSaveRejectsForeignReference(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, makeTransaction("tx-1", "TX-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := repo.Save(ctx, makeTransaction("tx-2", "TX-1"))
	if !errors.Is(err, domain.ErrTransactionExists) {
		t.Fatalf("expected ErrTransactionExists, got %v", err)
	}
}

func TestFindMissing(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := repo.FindByReference(ctx, "missing"); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, makeTransaction("tx-1", "TX-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SetStatus(ctx, "tx-1", domain.StatusDeclined, "wompi-99"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	got, err := repo.FindByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.StatusDeclined || got.ExternalID != "wompi-99" {
		t.Fatalf("unexpected state: %+v", got)
	}

	if err := repo.SetStatus(ctx, "missing", domain.StatusError, ""); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestTransitionToTerminal(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, makeTransaction("tx-1", "TX-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := repo.TransitionToTerminal(ctx, "tx-1", domain.StatusApproved, "wompi-1")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !ok {
		t.Fatal("expected first transition to win")
	}

	// Повторная финализация уже терминальной транзакции — no-op.
	ok, err = repo.TransitionToTerminal(ctx, "tx-1", domain.StatusDeclined, "wompi-2")
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatal("terminal transaction must not transition again")
	}

	got, err := repo.FindByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.StatusApproved || got.ExternalID != "wompi-1" {
		t.Fatalf("unexpected state after losing transition: %+v", got)
	}
}

func TestTransitionToTerminal_Errors(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	if _, err := repo.TransitionToTerminal(ctx, "missing", domain.StatusApproved, ""); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	if err := repo.Save(ctx, makeTransaction("tx-1", "TX-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.TransitionToTerminal(ctx, "tx-1", domain.StatusPending, ""); !errors.Is(err, domain.ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid, got %v", err)
	}
}

// Конкурентные финализации одной транзакции: переход выполняется ровно один раз.
func TestTransitionToTerminal_Concurrent(t *testing.T) {
	const attempts = 16

	repo := NewTransactionRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, makeTransaction("tx-1", "TX-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TransitionToTerminal(ctx, "tx-1", domain.StatusApproved, "wompi-1")
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}

// Первый вызов для события возвращает true, повторный — false, никогда true дважды.
func TestMarkEventProcessed(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	first, err := repo.MarkEventProcessed(ctx, "evt-1")
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	second, err := repo.MarkEventProcessed(ctx, "evt-1")
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if !first || second {
		t.Fatalf("expected (true,false), got (%v,%v)", first, second)
	}
}

// Конкурентные доставки одного события: ровно одна должна выиграть вставку.
func TestMarkEventProcessed_Concurrent(t *testing.T) {
	const deliveries = 32

	repo := NewTransactionRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan bool, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkEventProcessed(ctx, "evt-1")
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one first-time delivery, got %d", wins)
	}
}

func TestPruneProcessedEvents(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if ok, err := repo.MarkEventProcessed(ctx, id); err != nil || !ok {
			t.Fatalf("MarkEventProcessed(%s) failed: ok=%v err=%v", id, ok, err)
		}
	}

	// Записи только что добавлены: порог в прошлом не должен ничего удалить.
	deleted, err := repo.PruneProcessedEvents(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("PruneProcessedEvents failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted, got %d", deleted)
	}

	// Порог в будущем удаляет всё, но не больше limit за вызов.
	deleted, err = repo.PruneProcessedEvents(ctx, time.Now().UTC().Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("PruneProcessedEvents failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	deleted, err = repo.PruneProcessedEvents(ctx, time.Now().UTC().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("PruneProcessedEvents failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	// После очистки событие можно принять заново.
	ok, err := repo.MarkEventProcessed(ctx, "evt-1")
	if err != nil || !ok {
		t.Fatalf("expected evt-1 to be accepted again, ok=%v err=%v", ok, err)
	}
}
