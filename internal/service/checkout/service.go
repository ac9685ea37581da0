package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
	"github.com/jsgaviriam/checkout/internal/messaging/kafka"
	"github.com/jsgaviriam/checkout/internal/metrics"
)

const defaultCurrency = "COP"

// CheckoutRequest описывает входные данные полного checkout-потока.
type CheckoutRequest struct {
	ProductID string
	// AmountInCents — сумма платежа, приходит от клиента (как у исходного
	// checkout DTO); цена товара в каталоге не подменяет её.
	AmountInCents int64
	CustomerEmail string
	Installments  int
	Card          domain.CardDetails
}

// CheckoutResult — созданная транзакция вместе с ответом шлюза.
type CheckoutResult struct {
	Transaction domain.Transaction
	Gateway     domain.ChargeResult
}

// Service управляет жизненным циклом платёжной транзакции.
type Service interface {
	// Checkout выполняет полный поток: pending-транзакция, токенизация, charge.
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	// CreatePending создаёт pending-транзакцию под товар с доступным остатком.
	CreatePending(ctx context.Context, req CheckoutRequest) (domain.Transaction, error)
	// Finalize переводит транзакцию в терминальный статус ровно один раз.
	Finalize(ctx context.Context, reference string, status domain.Status, externalID string) (domain.Transaction, error)
	// Reconcile опрашивает шлюз и финализирует транзакцию, если её статус терминальный.
	Reconcile(ctx context.Context, reference string) (domain.Transaction, bool, error)
	// Transaction возвращает транзакцию по id.
	Transaction(ctx context.Context, id string) (domain.Transaction, error)
	// TransactionByReference возвращает транзакцию по ссылке мерчанта.
	TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error)
}

// service реализует последовательность checkout: pending → charge → finalize.
type service struct {
	products      domain.ProductRepository
	transactions  domain.TransactionRepository
	gateway       domain.PaymentGateway
	notifier      domain.StatusNotifier
	outbox        domain.OutboxRepository
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
}

// Option настраивает опциональные зависимости сервиса.
type Option func(*service)

// WithNotifier подключает live-уведомления подписчиков статуса.
func WithNotifier(n domain.StatusNotifier) Option {
	return func(s *service) { s.notifier = n }
}

// WithOutbox подключает transactional outbox для публикации событий.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *service) { s.outbox = repo }
}

// WithKafka подключает прямую публикацию событий в Kafka.
func WithKafka(producer *kafka.Producer) Option {
	return func(s *service) { s.kafkaProducer = producer }
}

// WithMetrics подключает метрики pipeline.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *service) { s.metrics = m }
}

// NewService создаёт рабочий экземпляр сервиса.
func NewService(
	products domain.ProductRepository,
	transactions domain.TransactionRepository,
	gateway domain.PaymentGateway,
	logger *log.Entry,
	opts ...Option,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	s := &service{
		products:     products,
		transactions: transactions,
		gateway:      gateway,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout выполняет полный поток оплаты. Транзакция остаётся PENDING, если
// шлюз ещё не принял решения: итог доедет webhook-ом либо опросом.
func (s *service) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	tx, err := s.CreatePending(ctx, req)
	if err != nil {
		return CheckoutResult{}, err
	}

	token, err := s.gateway.TokenizeCard(ctx, req.Card)
	if err != nil {
		// Карта не прошла токенизацию: charge не запускался, финализируем ERROR.
		s.logger.WithError(err).WithField("reference", tx.Reference).Warn("card tokenization failed")
		finalized, finErr := s.Finalize(ctx, tx.Reference, domain.StatusError, "")
		if finErr != nil {
			s.logger.WithError(finErr).WithField("reference", tx.Reference).Error("finalize after tokenization failure")
		}
		if finalized.ID != "" {
			tx = finalized
		}
		return CheckoutResult{Transaction: tx}, err
	}

	chargeStart := time.Now()
	result, err := s.gateway.Charge(ctx, domain.ChargeRequest{
		AmountInCents: tx.AmountInCents,
		Currency:      tx.Currency,
		CustomerEmail: req.CustomerEmail,
		Token:         token,
		Reference:     tx.Reference,
		Installments:  req.Installments,
	})
	if s.metrics != nil {
		s.metrics.RecordChargeDuration(time.Since(chargeStart))
	}
	if err != nil {
		return CheckoutResult{Transaction: tx}, fmt.Errorf("charge: %w", err)
	}

	if result.ExternalID != "" && !result.Status.Terminal() {
		// Привязываем id шлюза сразу, не дожидаясь финализации.
		if setErr := s.transactions.SetStatus(ctx, tx.ID, tx.Status, result.ExternalID); setErr != nil {
			s.logger.WithError(setErr).WithField("reference", tx.Reference).Warn("store external id")
		} else {
			tx.ExternalID = result.ExternalID
		}
	}

	if result.Status.Terminal() {
		finalized, finErr := s.Finalize(ctx, tx.Reference, result.Status, result.ExternalID)
		if finErr != nil {
			return CheckoutResult{Transaction: tx, Gateway: result}, finErr
		}
		tx = finalized
	}

	return CheckoutResult{Transaction: tx, Gateway: result}, nil
}

// CreatePending проверяет товар и остаток до обращения к шлюзу: заведомо
// обречённые платежи не доходят до charge.
func (s *service) CreatePending(ctx context.Context, req CheckoutRequest) (domain.Transaction, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Transaction{}, domain.ErrProductIDRequired
	}
	if req.AmountInCents <= 0 {
		return domain.Transaction{}, domain.ErrAmountInvalid
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !product.HasStock(1) {
		return domain.Transaction{}, domain.ErrOutOfStock
	}

	currency := product.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	tx := domain.Transaction{
		ID:            id,
		Status:        domain.StatusPending,
		AmountInCents: req.AmountInCents,
		Currency:      currency,
		ProductID:     product.ID,
		Reference:     newReference(now, id),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.transactions.Save(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("save pending transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
	}
	s.enqueueOutbox(tx, kafka.EventTypeTransactionCreated)
	s.publishTransactionEvent(kafka.EventTypeTransactionCreated, tx)

	s.logger.WithFields(log.Fields{
		"transaction_id": tx.ID,
		"reference":      tx.Reference,
		"product_id":     tx.ProductID,
		"amount":         tx.AmountInCents,
	}).Info("pending transaction created")

	return tx, nil
}

// Finalize идемпотентна: повторный вызов для уже терминальной транзакции
// возвращает её текущее состояние и ничего не меняет. Остаток списывается
// только тем вызовом, который реально выполнил переход PENDING → APPROVED.
func (s *service) Finalize(ctx context.Context, reference string, status domain.Status, externalID string) (domain.Transaction, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordFinalizeDuration(time.Since(start))
		}
	}()

	tx, err := s.transactions.FindByReference(ctx, reference)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.Status.Terminal() {
		return tx, nil
	}
	if !status.Terminal() {
		return domain.Transaction{}, domain.ErrStatusInvalid
	}

	won, err := s.transactions.TransitionToTerminal(ctx, tx.ID, status, externalID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transition transaction: %w", err)
	}

	tx, err = s.transactions.FindByID(ctx, tx.ID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !won {
		// Конкурентный путь успел первым: наш вызов — no-op.
		return tx, nil
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutFinalized(string(tx.Status))
	}

	if tx.Status == domain.StatusApproved {
		if err := s.products.DecreaseStock(ctx, tx.ProductID, 1); err != nil {
			// Транзакция уже финализирована: повторный проход сюда не попадёт,
			// расхождение остатка требует ручного вмешательства.
			s.logger.WithError(err).WithFields(log.Fields{
				"transaction_id": tx.ID,
				"product_id":     tx.ProductID,
			}).Error("stock decrement after approval failed")
			return tx, fmt.Errorf("decrease stock: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordStockDecrement()
		}
		s.enqueueOutbox(tx, kafka.EventTypeStockDecremented)
	}

	s.enqueueOutbox(tx, kafka.EventTypeTransactionFinalized)
	s.publishTransactionEvent(kafka.EventTypeTransactionFinalized, tx)
	s.notify(tx)

	s.logger.WithFields(log.Fields{
		"transaction_id": tx.ID,
		"reference":      tx.Reference,
		"status":         tx.Status,
	}).Info("transaction finalized")

	return tx, nil
}

// Reconcile используется опросом шлюза: финализирует транзакцию, когда шлюз
// уже принял решение. Второе возвращаемое значение — терминальность статуса.
func (s *service) Reconcile(ctx context.Context, reference string) (domain.Transaction, bool, error) {
	tx, err := s.transactions.FindByReference(ctx, reference)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if tx.Status.Terminal() {
		return tx, true, nil
	}

	status, err := s.gateway.GetTransactionStatus(ctx, reference)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewayPollFailure()
		}
		return tx, false, fmt.Errorf("poll gateway: %w", err)
	}
	if !status.Terminal() {
		return tx, false, nil
	}

	tx, err = s.Finalize(ctx, reference, status, "")
	if err != nil {
		return tx, false, err
	}
	return tx, true, nil
}

func (s *service) Transaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.transactions.FindByID(ctx, id)
}

func (s *service) TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	return s.transactions.FindByReference(ctx, reference)
}

func (s *service) enqueueOutbox(tx domain.Transaction, eventType kafka.EventType) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.NewTransactionEvent(
		eventType, tx.ID, tx.Reference, tx.ProductID, string(tx.Status), tx.AmountInCents, tx.Currency,
	))
	if err != nil {
		s.logger.WithError(err).Warn("marshal outbox payload")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "transaction",
		AggregateID:   tx.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("transaction_id", tx.ID).Warn("enqueue outbox event")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}

func (s *service) publishTransactionEvent(eventType kafka.EventType, tx domain.Transaction) {
	if s.kafkaProducer == nil {
		return
	}
	event := kafka.NewTransactionEvent(
		eventType, tx.ID, tx.Reference, tx.ProductID, string(tx.Status), tx.AmountInCents, tx.Currency,
	)
	if err := s.kafkaProducer.PublishTransactionEvent(event); err != nil {
		// Сбой брокера не роняет платёж: событие доедет через outbox.
		s.logger.WithError(err).WithField("transaction_id", tx.ID).Warn("direct kafka publish failed")
	}
}

func (s *service) notify(tx domain.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(tx.ID, domain.StatusUpdate{
		Type:        "transaction.updated",
		Transaction: tx,
		Status:      tx.Status,
		Timestamp:   time.Now().UTC(),
	})
}

// newReference строит уникальную ссылку мерчанта: TX-<unix millis>-<суффикс id>.
func newReference(now time.Time, id string) string {
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("TX-%d-%s", now.UnixMilli(), suffix)
}
