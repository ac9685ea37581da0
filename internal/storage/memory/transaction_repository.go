package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// transactionRepositoryInMemory — in-memory реализация TransactionRepository.
// Карта processedEvents играет роль уникального индекса webhook_events.
type transactionRepositoryInMemory struct {
	mu              sync.RWMutex
	items           map[string]domain.Transaction
	byReference     map[string]string
	processedEvents map[string]time.Time
}

// NewTransactionRepository создаёт in-memory реализацию TransactionRepository.
func NewTransactionRepository() *transactionRepositoryInMemory {
	return &transactionRepositoryInMemory{
		items:           make(map[string]domain.Transaction),
		byReference:     make(map[string]string),
		processedEvents: make(map[string]time.Time),
	}
}

// Save вставляет или перезаписывает транзакцию по id.
// Reference уникальна: конфликт с чужой транзакцией возвращает ErrTransactionExists.
func (r *transactionRepositoryInMemory) Save(_ context.Context, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ownerID, ok := r.byReference[tx.Reference]; ok && ownerID != tx.ID {
		return domain.ErrTransactionExists
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[tx.ID] = tx
	r.byReference[tx.Reference] = tx.ID
	return nil
}

// FindByID возвращает транзакцию или ErrTransactionNotFound.
func (r *transactionRepositoryInMemory) FindByID(_ context.Context, id string) (domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.items[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return tx, nil
}

// FindByReference возвращает транзакцию по ссылке мерчанта.
func (r *transactionRepositoryInMemory) FindByReference(_ context.Context, reference string) (domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byReference[reference]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return r.items[id], nil
}

// SetStatus напрямую обновляет статус и external_id транзакции.
func (r *transactionRepositoryInMemory) SetStatus(_ context.Context, id string, status domain.Status, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = status
	if externalID != "" {
		tx.ExternalID = externalID
	}
	tx.UpdatedAt = time.Now().UTC()
	r.items[id] = tx
	return nil
}

// TransitionToTerminal переводит транзакцию из PENDING в терминальный статус.
// Проверка и запись выполняются под одной блокировкой: конкурентные
// финализации не могут пройти дважды.
func (r *transactionRepositoryInMemory) TransitionToTerminal(_ context.Context, id string, status domain.Status, externalID string) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrStatusInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.items[id]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if tx.Status != domain.StatusPending {
		return false, nil
	}
	tx.Status = status
	if externalID != "" {
		tx.ExternalID = externalID
	}
	tx.UpdatedAt = time.Now().UTC()
	r.items[id] = tx
	return true, nil
}

// MarkEventProcessed пытается добавить eventID в ledger идемпотентности.
func (r *transactionRepositoryInMemory) MarkEventProcessed(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.processedEvents[eventID]; seen {
		return false, nil
	}
	r.processedEvents[eventID] = time.Now().UTC()
	return true, nil
}

// PruneProcessedEvents удаляет события старше before, не более limit за вызов.
func (r *transactionRepositoryInMemory) PruneProcessedEvents(_ context.Context, before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, seenAt := range r.processedEvents {
		if limit > 0 && deleted >= limit {
			break
		}
		if seenAt.Before(before) {
			delete(r.processedEvents, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.TransactionRepository = (*transactionRepositoryInMemory)(nil)
