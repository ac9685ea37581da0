package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
	"github.com/jsgaviriam/checkout/internal/metrics"
	"github.com/jsgaviriam/checkout/internal/service/checkout"
	"github.com/jsgaviriam/checkout/internal/service/notifier"
)

const (
	// defaultHeartbeatInterval — период keep-alive сообщений SSE-потока.
	defaultHeartbeatInterval = 30 * time.Second
	// defaultPollInterval — период опроса шлюза для pending-транзакций.
	defaultPollInterval = 5 * time.Second
)

// TransactionHandler обслуживает чтение транзакций и live-поток статусов.
type TransactionHandler struct {
	service           checkout.Service
	registry          *notifier.Registry
	metrics           *metrics.CheckoutMetrics
	logger            *log.Entry
	heartbeatInterval time.Duration
	pollInterval      time.Duration
}

// NewTransactionHandler создаёт handler транзакций.
func NewTransactionHandler(
	service checkout.Service,
	registry *notifier.Registry,
	m *metrics.CheckoutMetrics,
	logger *log.Entry,
) *TransactionHandler {
	if logger == nil {
		logger = log.WithField("component", "transaction-handler")
	}
	return &TransactionHandler{
		service:           service,
		registry:          registry,
		metrics:           m,
		logger:            logger,
		heartbeatInterval: defaultHeartbeatInterval,
		pollInterval:      defaultPollInterval,
	}
}

// RegisterRoutes регистрирует маршруты транзакций.
func (h *TransactionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/transactions/:id", h.getByID)
	e.GET("/transactions/:reference/events", h.streamEvents)
}

func (h *TransactionHandler) getByID(c echo.Context) error {
	tx, err := h.service.Transaction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionDTO(tx))
}

// streamEvents отдаёт text/event-stream со статусом транзакции: начальный
// снимок, heartbeat каждые 30 секунд и терминальное событие, после которого
// поток закрывается. Пока транзакция PENDING, handler параллельно опрашивает
// шлюз; и опрос, и подписка живут не дольше контекста запроса.
func (h *TransactionHandler) streamEvents(c echo.Context) error {
	ctx := c.Request().Context()
	reference := c.Param("reference")

	tx, err := h.service.TransactionByReference(ctx, reference)
	if err != nil {
		return writeError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if h.metrics != nil {
		h.metrics.RecordStreamOpened()
		defer h.metrics.RecordStreamClosed()
	}

	// Начальный снимок уходит до любых ожиданий.
	lastStatus := tx.Status
	if err := h.writeEvent(resp, "snapshot", domain.StatusUpdate{
		Type:        "transaction.snapshot",
		Transaction: tx,
		Status:      tx.Status,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		return nil
	}
	if tx.Status.Terminal() {
		return nil
	}

	updates, unsubscribe := h.registry.Subscribe(tx.ID)
	defer unsubscribe()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case update, ok := <-updates:
			if !ok {
				// Подписку вытеснил новый поток того же клиента.
				return nil
			}
			lastStatus = update.Status
			if err := h.writeEvent(resp, "update", update); err != nil {
				return nil
			}
			if update.Status.Terminal() {
				return nil
			}

		case <-heartbeat.C:
			if err := h.writeHeartbeat(resp, lastStatus); err != nil {
				return nil
			}

		case <-poll.C:
			polled, terminal, err := h.service.Reconcile(ctx, reference)
			if err != nil {
				h.logger.WithError(err).WithField("reference", reference).Debug("gateway poll failed")
				continue
			}
			if !terminal {
				continue
			}
			// Финализация нашим вызовом уже ушла в notifier; если победил
			// конкурентный путь без подписки, событие дойдёт отсюда.
			if err := h.writeEvent(resp, "update", domain.StatusUpdate{
				Type:        "transaction.updated",
				Transaction: polled,
				Status:      polled.Status,
				Timestamp:   time.Now().UTC(),
			}); err != nil {
				return nil
			}
			return nil
		}
	}
}

func (h *TransactionHandler) writeEvent(resp *echo.Response, event string, update domain.StatusUpdate) error {
	payload, err := json.Marshal(struct {
		Type        string         `json:"type"`
		Transaction transactionDTO `json:"transaction"`
		Status      string         `json:"status"`
		Timestamp   time.Time      `json:"timestamp"`
	}{
		Type:        update.Type,
		Transaction: toTransactionDTO(update.Transaction),
		Status:      string(update.Status),
		Timestamp:   update.Timestamp,
	})
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

func (h *TransactionHandler) writeHeartbeat(resp *echo.Response, last domain.Status) error {
	if _, err := fmt.Fprintf(resp, "event: heartbeat\ndata: {\"status\":%q}\n\n", string(last)); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
