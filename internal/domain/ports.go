package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ProductListQuery задаёт параметры постраничной выборки каталога.
type ProductListQuery struct {
	Q     string
	Page  int
	Limit int
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// FindAll возвращает все товары каталога, отсортированные по имени.
	FindAll(ctx context.Context) ([]Product, error)
	// FindByID возвращает товар или ErrProductNotFound, если его нет.
	FindByID(ctx context.Context, id string) (Product, error)
	// Search возвращает страницу товаров по подстроке имени.
	Search(ctx context.Context, q ProductListQuery) ([]Product, error)
	// FindByCategory возвращает страницу товаров категории.
	FindByCategory(ctx context.Context, categoryID string, q ProductListQuery) ([]Product, error)
	// DecreaseStock атомарно списывает qty единиц с остатка одного товара.
	// Проверка stock >= qty выполняется под эксклюзивной блокировкой строки:
	// два конкурентных списания не могут прочитать один и тот же остаток.
	// Возвращает ErrProductNotFound или ErrOutOfStock.
	DecreaseStock(ctx context.Context, id string, qty int64) error
}

// CategoryRepository описывает требования к хранилищу категорий.
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]Category, error)
	FindByID(ctx context.Context, id string) (Category, error)
}

// TransactionRepository описывает хранилище транзакций и ledger идемпотентности
// для webhook-событий.
type TransactionRepository interface {
	// Save вставляет или перезаписывает транзакцию по id.
	Save(ctx context.Context, tx Transaction) error
	// FindByID возвращает транзакцию или ErrTransactionNotFound.
	FindByID(ctx context.Context, id string) (Transaction, error)
	// FindByReference возвращает транзакцию по ссылке мерчанта или ErrTransactionNotFound.
	FindByReference(ctx context.Context, reference string) (Transaction, error)
	// SetStatus напрямую обновляет статус и external_id транзакции.
	SetStatus(ctx context.Context, id string, status Status, externalID string) error
	// TransitionToTerminal атомарно переводит транзакцию из PENDING в
	// терминальный статус. false означает, что транзакцию уже финализировал
	// конкурентный путь (webhook против опроса шлюза): переход PENDING →
	// терминал выполняется ровно один раз.
	TransitionToTerminal(ctx context.Context, id string, status Status, externalID string) (bool, error)
	// MarkEventProcessed пытается вставить eventID в ledger идемпотентности.
	// true — событие видим впервые, false — повторная доставка.
	// Уникальный индекс и есть весь механизм сериализации, отдельных блокировок нет.
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
	// PruneProcessedEvents удаляет из ledger события старше before, не более
	// limit за вызов. Возвращает количество удалённых записей.
	PruneProcessedEvents(ctx context.Context, before time.Time, limit int) (int, error)
}

// CardDetails — сырые данные карты, передаются шлюзу на токенизацию и никогда
// не сохраняются на нашей стороне.
type CardDetails struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

// ChargeRequest описывает параметры списания через платёжный шлюз.
type ChargeRequest struct {
	AmountInCents int64
	Currency      string
	CustomerEmail string
	Token         string
	Reference     string
	Installments  int
}

// ChargeResult — нормализованный результат charge-запроса.
// Сетевые и протокольные ошибки шлюза сюда уже свёрнуты в Status=ERROR.
type ChargeResult struct {
	Status     Status          `json:"status"`
	ExternalID string          `json:"external_id,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// PaymentGateway описывает взаимодействие с внешним платёжным шлюзом.
type PaymentGateway interface {
	// TokenizeCard обменивает данные карты на opaque-токен шлюза.
	TokenizeCard(ctx context.Context, card CardDetails) (string, error)
	// Charge проводит списание. Никогда не возвращает ошибку сетевого уровня:
	// такие сбои нормализуются в ChargeResult со статусом ERROR.
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	// GetTransactionStatus возвращает текущий статус charge по ссылке мерчанта.
	GetTransactionStatus(ctx context.Context, reference string) (Status, error)
}

// StatusUpdate — одно уведомление для подписчика live-статуса.
type StatusUpdate struct {
	Type        string      `json:"type"`
	Transaction Transaction `json:"transaction"`
	Status      Status      `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
}

// StatusNotifier доставляет одноразовое уведомление подписчику,
// ожидающему итог транзакции на длинном соединении.
type StatusNotifier interface {
	// Notify передаёт терминальный статус подписчику транзакции, если он есть.
	// Для отключившихся подписчиков ничего не буферизуется.
	Notify(transactionID string, update StatusUpdate)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}
