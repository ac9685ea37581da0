package wompi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"

	"github.com/jsgaviriam/checkout/internal/domain"
)

const testEventsKey = "test_events_key"

func signedEvent(t *testing.T, status string) WebhookEvent {
	t.Helper()

	event := WebhookEvent{
		Event:     EventTransactionUpdated,
		Timestamp: 1700000000,
	}
	event.Data.Transaction = WebhookTransaction{
		ID:            "wompi-tx-1",
		Status:        status,
		Reference:     "TX-1700000000000-abc123",
		AmountInCents: 250000,
	}

	tx := event.Data.Transaction
	plain := tx.ID + tx.Status + strconv.FormatInt(tx.AmountInCents, 10) +
		strconv.FormatInt(event.Timestamp, 10) + testEventsKey
	sum := sha256.Sum256([]byte(plain))
	event.Signature = WebhookSignature{
		Checksum:   hex.EncodeToString(sum[:]),
		Properties: []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"},
	}
	return event
}

func TestVerifyWebhook_Valid(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	if err := VerifyWebhook(event, testEventsKey); err != nil {
		t.Fatalf("валидная подпись отклонена: %v", err)
	}
}

func TestVerifyWebhook_UppercaseChecksumAccepted(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	upper := ""
	for _, r := range event.Signature.Checksum {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	event.Signature.Checksum = upper

	if err := VerifyWebhook(event, testEventsKey); err != nil {
		t.Fatalf("checksum в верхнем регистре отклонён: %v", err)
	}
}

func TestVerifyWebhook_TamperedStatus(t *testing.T) {
	event := signedEvent(t, "DECLINED")
	// Подменяем статус после подписи: checksum больше не сходится.
	event.Data.Transaction.Status = "APPROVED"

	if err := VerifyWebhook(event, testEventsKey); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено: %v", err)
	}
}

func TestVerifyWebhook_TamperedChecksumByte(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	checksum := []byte(event.Signature.Checksum)
	if checksum[0] == 'a' {
		checksum[0] = 'b'
	} else {
		checksum[0] = 'a'
	}
	event.Signature.Checksum = string(checksum)

	if err := VerifyWebhook(event, testEventsKey); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено: %v", err)
	}
}

func TestVerifyWebhook_WrongKey(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	if err := VerifyWebhook(event, "other_key"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено: %v", err)
	}
}

func TestVerifyWebhook_UnsupportedEventType(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	event.Event = "nequi_token.updated"

	if err := VerifyWebhook(event, testEventsKey); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено: %v", err)
	}
}

func TestVerifyWebhook_MissingKeyFailsClosed(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	if err := VerifyWebhook(event, ""); !errors.Is(err, domain.ErrGatewayConfigMissing) {
		t.Fatalf("пустой events key должен отклонять событие, получено: %v", err)
	}
}

func TestVerifyWebhook_MissingChecksum(t *testing.T) {
	event := signedEvent(t, "APPROVED")
	event.Signature.Checksum = ""

	if err := VerifyWebhook(event, testEventsKey); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("ожидалась ErrInvalidSignature, получено: %v", err)
	}
}

func TestParseWebhook_Malformed(t *testing.T) {
	if _, err := ParseWebhook([]byte("{not json")); err == nil {
		t.Fatal("ожидалась ошибка разбора")
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Status
	}{
		{"APPROVED", domain.StatusApproved},
		{"approved", domain.StatusApproved},
		{"DECLINED", domain.StatusDeclined},
		{"PENDING", domain.StatusPending},
		{"VOIDED", domain.StatusError},
		{"", domain.StatusError},
	}
	for _, tt := range tests {
		if got := MapStatus(tt.in); got != tt.want {
			t.Errorf("MapStatus(%q) = %s, ожидалось %s", tt.in, got, tt.want)
		}
	}
}
