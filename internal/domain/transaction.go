package domain

import "time"

// Status описывает жизненный цикл платёжной транзакции.
// Единственный допустимый переход — из PENDING в один из терминальных статусов.
type Status string

const (
	// StatusPending — транзакция создана, итог платежа ещё не известен.
	StatusPending Status = "PENDING"
	// StatusApproved — платёж подтверждён шлюзом.
	StatusApproved Status = "APPROVED"
	// StatusDeclined — платёж отклонён шлюзом.
	StatusDeclined Status = "DECLINED"
	// StatusError — сетевая или протокольная ошибка при проведении платежа.
	StatusError Status = "ERROR"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusError:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusError
}

// Transaction агрегирует состояние одной покупки: товар, сумму и итог платежа.
type Transaction struct {
	ID            string
	Status        Status
	AmountInCents int64
	Currency      string
	ProductID     string
	// Reference — уникальная ссылка мерчанта. Связывает транзакцию с charge
	// на стороне шлюза и используется клиентом для polling/SSE.
	Reference string
	// ExternalID — идентификатор транзакции на стороне шлюза.
	// Может быть пустым, пока шлюз его не вернул.
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Finalized сообщает, переведена ли транзакция в терминальный статус.
func (t *Transaction) Finalized() bool {
	return t.Status.Terminal()
}

// ValidateInvariants проверяет базовые инварианты транзакции и возвращает список замечаний.
func (t *Transaction) ValidateInvariants() []error {
	var errs []error

	if t.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if t.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if t.Reference == "" {
		errs = append(errs, ErrReferenceRequired)
	}
	if t.AmountInCents <= 0 {
		errs = append(errs, ErrAmountInvalid)
	}
	if !t.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}

	return errs
}
