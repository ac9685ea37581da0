package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
	"github.com/jsgaviriam/checkout/internal/service/checkout"
)

// CheckoutHandler обслуживает запуск платёжного потока.
type CheckoutHandler struct {
	service checkout.Service
	logger  *log.Entry
}

// NewCheckoutHandler создаёт handler checkout-потока.
func NewCheckoutHandler(service checkout.Service, logger *log.Entry) *CheckoutHandler {
	if logger == nil {
		logger = log.WithField("component", "checkout-handler")
	}
	return &CheckoutHandler{service: service, logger: logger}
}

// RegisterRoutes регистрирует маршруты платежей.
func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/checkout", h.checkout)
}

type checkoutPayload struct {
	ProductID     string `json:"productId"`
	AmountInCents int64  `json:"amountInCents"`
	CustomerEmail string `json:"customerEmail"`
	Installments  int    `json:"installments"`
	Card          struct {
		Number     string `json:"number"`
		CVC        string `json:"cvc"`
		ExpMonth   string `json:"exp_month"`
		ExpYear    string `json:"exp_year"`
		CardHolder string `json:"card_holder"`
	} `json:"card"`
}

type checkoutResponse struct {
	Transaction transactionDTO     `json:"transaction"`
	Wompi       domain.ChargeResult `json:"wompi"`
}

func (h *CheckoutHandler) checkout(c echo.Context) error {
	var payload checkoutPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	result, err := h.service.Checkout(c.Request().Context(), checkout.CheckoutRequest{
		ProductID:     payload.ProductID,
		AmountInCents: payload.AmountInCents,
		CustomerEmail: payload.CustomerEmail,
		Installments:  payload.Installments,
		Card: domain.CardDetails{
			Number:     payload.Card.Number,
			CVC:        payload.Card.CVC,
			ExpMonth:   payload.Card.ExpMonth,
			ExpYear:    payload.Card.ExpYear,
			CardHolder: payload.Card.CardHolder,
		},
	})
	if err != nil {
		// Транзакция могла быть создана до сбоя: отдаём её вместе с ошибкой статуса.
		if result.Transaction.ID != "" {
			h.logger.WithError(err).WithField("reference", result.Transaction.Reference).Warn("checkout failed after transaction creation")
			return c.JSON(http.StatusBadGateway, checkoutResponse{
				Transaction: toTransactionDTO(result.Transaction),
				Wompi:       result.Gateway,
			})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, checkoutResponse{
		Transaction: toTransactionDTO(result.Transaction),
		Wompi:       result.Gateway,
	})
}
