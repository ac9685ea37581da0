package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
	"github.com/jsgaviriam/checkout/internal/gateway/wompi"
	"github.com/jsgaviriam/checkout/internal/metrics"
	"github.com/jsgaviriam/checkout/internal/service/checkout"
)

// WebhookHandler принимает события платёжного шлюза.
// Невалидная подпись — 401 без каких-либо изменений состояния; всё, что
// прошло подпись, подтверждается 200, чтобы шлюз не ретраил вечно.
type WebhookHandler struct {
	service      checkout.Service
	transactions domain.TransactionRepository
	eventsKey    string
	metrics      *metrics.CheckoutMetrics
	logger       *log.Entry
}

// NewWebhookHandler создаёт handler webhook-эндпоинта.
func NewWebhookHandler(
	service checkout.Service,
	transactions domain.TransactionRepository,
	eventsKey string,
	m *metrics.CheckoutMetrics,
	logger *log.Entry,
) *WebhookHandler {
	if logger == nil {
		logger = log.WithField("component", "webhook-handler")
	}
	return &WebhookHandler{
		service:      service,
		transactions: transactions,
		eventsKey:    eventsKey,
		metrics:      m,
		logger:       logger,
	}
}

// RegisterRoutes регистрирует webhook-маршрут.
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/wompi/transactions", h.handle)
}

type webhookAck struct {
	OK bool `json:"ok"`
}

func (h *WebhookHandler) handle(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
	}

	event, err := wompi.ParseWebhook(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed event"})
	}

	if err := wompi.VerifyWebhook(event, h.eventsKey); err != nil {
		if h.metrics != nil {
			h.metrics.RecordWebhookRejected()
		}
		h.logger.WithError(err).Warn("webhook signature rejected")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	if h.metrics != nil {
		h.metrics.RecordWebhookReceived()
	}

	tx := event.Data.Transaction
	entry := h.logger.WithFields(log.Fields{
		"event_id":  tx.ID,
		"reference": tx.Reference,
		"status":    tx.Status,
	})

	// Событие без ссылки или статуса подписано корректно, но бесполезно:
	// подтверждаем и забываем.
	if tx.Reference == "" || tx.Status == "" {
		entry.Debug("webhook event without reference or status, ignored")
		return c.JSON(http.StatusOK, webhookAck{OK: true})
	}

	// Идемпотентность: id события вставляется в ledger ровно один раз.
	firstDelivery, err := h.transactions.MarkEventProcessed(ctx, tx.ID)
	if err != nil {
		entry.WithError(err).Error("webhook idempotency check failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	if !firstDelivery {
		if h.metrics != nil {
			h.metrics.RecordWebhookDuplicate()
		}
		entry.Debug("duplicate webhook delivery skipped")
		return c.JSON(http.StatusOK, webhookAck{OK: true})
	}

	status := wompi.MapStatus(tx.Status)
	if _, err := h.service.Finalize(ctx, tx.Reference, status, tx.ID); err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			// Ссылка нам не известна: чужое или устаревшее событие.
			entry.Debug("webhook for unknown reference, ignored")
			return c.JSON(http.StatusOK, webhookAck{OK: true})
		}
		entry.WithError(err).Error("webhook finalize failed")
		// Подпись валидна: подтверждаем доставку, расхождение решается вручную.
		return c.JSON(http.StatusOK, webhookAck{OK: true})
	}

	entry.Info("webhook event processed")
	return c.JSON(http.StatusOK, webhookAck{OK: true})
}
