package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События жизненного цикла транзакции
	EventTypeTransactionCreated   EventType = "transaction.created"
	EventTypeTransactionFinalized EventType = "transaction.finalized"

	// События склада
	EventTypeStockDecremented EventType = "stock.decremented"
)

// Topics для Kafka. Доменные события доезжают до TopicTransactionEvents
// только через outbox; прямая публикация идёт в отдельный status-topic,
// иначе потребители получат каждое событие дважды.
const (
	TopicTransactionEvents = "checkout.transaction.events"
	TopicTransactionStatus = "checkout.transaction.status"
	TopicDeadLetterQueue   = "checkout.dlq" // Dead Letter Queue для failed messages
)

// TransactionEvent представляет событие транзакции для внешних потребителей.
type TransactionEvent struct {
	EventType     EventType      `json:"event_type"`
	TransactionID string         `json:"transaction_id"`
	Reference     string         `json:"reference"`
	ProductID     string         `json:"product_id"`
	Status        string         `json:"status"`
	AmountInCents int64          `json:"amount_in_cents"`
	Currency      string         `json:"currency"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewTransactionEvent создает новое событие транзакции.
func NewTransactionEvent(eventType EventType, transactionID, reference, productID, status string, amountInCents int64, currency string) *TransactionEvent {
	return &TransactionEvent{
		EventType:     eventType,
		TransactionID: transactionID,
		Reference:     reference,
		ProductID:     productID,
		Status:        status,
		AmountInCents: amountInCents,
		Currency:      currency,
		Timestamp:     time.Now(),
	}
}
