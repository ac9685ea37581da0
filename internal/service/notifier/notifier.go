package notifier

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// Registry раздаёт live-обновления статуса транзакций подписчикам.
// На одну транзакцию живёт не больше одного подписчика: повторная подписка
// вытесняет предыдущую (закрывает её канал). Для отсутствующих подписчиков
// уведомления не буферизуются — опоздавший клиент читает статус из хранилища.
type Registry struct {
	mu          sync.Mutex
	subscribers map[string]chan domain.StatusUpdate
	logger      *log.Entry
}

// NewRegistry создаёт пустой реестр подписчиков.
func NewRegistry(logger *log.Entry) *Registry {
	if logger == nil {
		logger = log.WithField("component", "status-notifier")
	}
	return &Registry{
		subscribers: make(map[string]chan domain.StatusUpdate),
		logger:      logger,
	}
}

// Subscribe регистрирует подписчика на обновления транзакции и возвращает
// канал уведомлений вместе с функцией отписки. Канал буферизован на одно
// сообщение: Notify не блокируется на медленном потребителе.
func (r *Registry) Subscribe(transactionID string) (<-chan domain.StatusUpdate, func()) {
	ch := make(chan domain.StatusUpdate, 1)

	r.mu.Lock()
	if prev, ok := r.subscribers[transactionID]; ok {
		close(prev)
	}
	r.subscribers[transactionID] = ch
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Удаляем только свой канал: подписчик мог быть уже вытеснен.
		if cur, ok := r.subscribers[transactionID]; ok && cur == ch {
			delete(r.subscribers, transactionID)
			close(cur)
		}
	}
	return ch, unsubscribe
}

// Notify доставляет обновление подписчику транзакции, если он есть.
// Отправка выполняется под мьютексом: канал буферизован и select не
// блокируется, зато конкурентный unsubscribe/Subscribe не может закрыть
// канал между чтением из карты и отправкой.
func (r *Registry) Notify(transactionID string, update domain.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.subscribers[transactionID]
	if !ok {
		return
	}

	select {
	case ch <- update:
		r.logger.WithFields(log.Fields{
			"transaction_id": transactionID,
			"status":         update.Status,
		}).Debug("status update delivered")
	default:
		// Буфер занят: подписчик ещё не прочитал предыдущее обновление.
		r.logger.WithField("transaction_id", transactionID).
			Warn("subscriber is not reading, update dropped")
	}
}

// ActiveSubscribers возвращает число открытых подписок.
func (r *Registry) ActiveSubscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

var _ domain.StatusNotifier = (*Registry)(nil)
