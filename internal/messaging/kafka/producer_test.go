package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	event := NewTransactionEvent(
		EventTypeTransactionCreated,
		"tx-123",
		"TX-1700000000000-abc123",
		"product-1",
		"PENDING",
		250000,
		"COP",
	)

	// Публикуем событие
	err := producer.PublishEvent(TopicTransactionEvents, "tx-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewTransactionEvent(
		EventTypeTransactionFinalized,
		"tx-123",
		"TX-1700000000000-abc123",
		"product-1",
		"APPROVED",
		250000,
		"COP",
	)

	err := producer.PublishEvent(TopicTransactionEvents, "tx-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

// Прямая публикация уходит в status-topic: доменный topic наполняет только
// outbox-worker, прямая отправка туда же удвоила бы каждое событие.
func TestProducer_PublishTransactionEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicTransactionStatus {
			t.Errorf("ожидался topic %s, получен %s", TopicTransactionStatus, msg.Topic)
		}
		if msg.Topic == TopicTransactionEvents {
			t.Error("прямая публикация не должна писать в outbox-topic")
		}
		return nil
	})

	event := NewTransactionEvent(
		EventTypeTransactionFinalized,
		"tx-777",
		"TX-ref",
		"product-1",
		"DECLINED",
		100000,
		"COP",
	)

	if err := producer.PublishTransactionEvent(event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewTransactionEvent(t *testing.T) {
	event := NewTransactionEvent(
		EventTypeTransactionFinalized,
		"tx-123",
		"TX-ref",
		"product-1",
		"APPROVED",
		250000,
		"COP",
	)

	if event.EventType != EventTypeTransactionFinalized {
		t.Errorf("expected event type %s, got %s", EventTypeTransactionFinalized, event.EventType)
	}

	if event.TransactionID != "tx-123" {
		t.Errorf("expected transaction id tx-123, got %s", event.TransactionID)
	}

	if event.Status != "APPROVED" {
		t.Errorf("expected status APPROVED, got %s", event.Status)
	}

	if event.AmountInCents != 250000 {
		t.Errorf("expected amount 250000, got %d", event.AmountInCents)
	}

	// Проверяем, что timestamp установлен
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	// Проверяем, что timestamp близок к текущему времени
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
