package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// EventTransactionUpdated — единственный поддерживаемый тип webhook-события.
const EventTransactionUpdated = "transaction.updated"

// WebhookTransaction — данные транзакции внутри payload webhook-события.
type WebhookTransaction struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amount_in_cents"`
}

// WebhookSignature — блок подписи события.
type WebhookSignature struct {
	Checksum   string   `json:"checksum"`
	Properties []string `json:"properties"`
}

// WebhookEvent — событие шлюза, доставленное на наш webhook-эндпоинт.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction WebhookTransaction `json:"transaction"`
	} `json:"data"`
	Signature WebhookSignature `json:"signature"`
	Timestamp int64            `json:"timestamp"`
	SentAt    string           `json:"sent_at"`
}

// ParseWebhook разбирает сырое тело webhook-запроса.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook body: %w", err)
	}
	return event, nil
}

// VerifyWebhook проверяет checksum события: SHA-256 от конкатенации
// id + status + amount_in_cents + timestamp + events key. Любое несоответствие,
// неизвестный тип события или отсутствующий секрет — отказ (fail closed).
func VerifyWebhook(event WebhookEvent, eventsKey string) error {
	if eventsKey == "" {
		return domain.ErrGatewayConfigMissing
	}
	if event.Event != EventTransactionUpdated {
		return fmt.Errorf("%w: unsupported event type %q", domain.ErrInvalidSignature, event.Event)
	}
	if event.Signature.Checksum == "" {
		return fmt.Errorf("%w: missing checksum", domain.ErrInvalidSignature)
	}

	tx := event.Data.Transaction
	plain := tx.ID + tx.Status + strconv.FormatInt(tx.AmountInCents, 10) +
		strconv.FormatInt(event.Timestamp, 10) + eventsKey
	sum := sha256.Sum256([]byte(plain))
	expected := hex.EncodeToString(sum[:])

	// Сравнение за постоянное время: checksum приходит от внешней стороны.
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(event.Signature.Checksum))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// MapStatus сводит словарь статусов шлюза к нашему: всё незнакомое — ERROR.
func MapStatus(gatewayStatus string) domain.Status {
	switch strings.ToUpper(gatewayStatus) {
	case "APPROVED":
		return domain.StatusApproved
	case "DECLINED":
		return domain.StatusDeclined
	case "PENDING":
		return domain.StatusPending
	default:
		return domain.StatusError
	}
}
