package domain

import "errors"

var (
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock — на складе недостаточно единиц товара для списания.
	ErrOutOfStock = errors.New("out of stock")
	// ErrCategoryNotFound возвращается, если категория каталога не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrTransactionNotFound возвращается, если транзакция не найдена в хранилище.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionExists сигнализирует о конфликте по id или reference при вставке.
	ErrTransactionExists = errors.New("transaction already exists")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствующей ссылки мерчанта.
	ErrReferenceRequired = errors.New("reference is required")
	// Ошибка неположительной суммы в центах.
	ErrAmountInvalid = errors.New("amount_in_cents must be greater than zero")
	// Ошибка неположительного количества при списании со склада.
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка неизвестного статуса транзакции.
	ErrStatusInvalid = errors.New("invalid transaction status")
	// ErrInvalidSignature — подпись webhook-события не прошла проверку.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrGatewayConfigMissing — не заданы обязательные креденшелы платёжного шлюза.
	ErrGatewayConfigMissing = errors.New("payment gateway credentials are not configured")
	// ErrAcceptanceTokenMissing — шлюз не вернул acceptance_token при handshake.
	ErrAcceptanceTokenMissing = errors.New("acceptance token is missing in gateway response")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к семейству "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
