package wompi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
)

const defaultRequestTimeout = 15 * time.Second

// Config содержит креденшелы платёжного шлюза Wompi.
// Все ключи обязательны: без них gateway-зависимые маршруты не поднимаются.
type Config struct {
	BaseURL      string
	PublicKey    string
	PrivateKey   string
	IntegrityKey string
	// EventsKey — общий секрет для проверки checksum webhook-событий.
	EventsKey string
}

// Validate проверяет, что все обязательные креденшелы заданы.
func (c Config) Validate() error {
	if c.BaseURL == "" || c.PublicKey == "" || c.PrivateKey == "" || c.IntegrityKey == "" || c.EventsKey == "" {
		return domain.ErrGatewayConfigMissing
	}
	return nil
}

// Client реализует domain.PaymentGateway поверх HTTP API Wompi.
// Сырые данные карты передаются шлюзу на токенизацию и нигде не сохраняются.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Entry
}

// NewClient создаёт клиент шлюза. Отсутствие любого креденшела — фатальная
// ошибка конструирования, а не per-request.
func NewClient(cfg Config, logger *log.Entry) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.WithField("component", "wompi-client")
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultRequestTimeout},
		logger: logger,
	}, nil
}

type merchantResponse struct {
	Data struct {
		PresignedAcceptance struct {
			AcceptanceToken string `json:"acceptance_token"`
		} `json:"presigned_acceptance"`
	} `json:"data"`
}

type tokenizeResponse struct {
	Data struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		LastFour string `json:"last_four"`
	} `json:"data"`
}

type transactionData struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

type transactionResponse struct {
	Data transactionData `json:"data"`
}

type transactionListResponse struct {
	Data []transactionData `json:"data"`
}

// TokenizeCard обменивает данные карты на opaque-токен шлюза (public key).
// В отличие от Charge, ошибки токенизации поднимаются вызывающему.
func (c *Client) TokenizeCard(ctx context.Context, card domain.CardDetails) (string, error) {
	var resp tokenizeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tokens/cards", c.cfg.PublicKey, card, &resp); err != nil {
		return "", fmt.Errorf("tokenize card: %w", err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("tokenize card: empty token in gateway response")
	}
	return resp.Data.ID, nil
}

// Charge проводит списание: handshake за acceptance_token, integrity-подпись,
// POST /transactions под private key. Сетевые и протокольные сбои
// нормализуются в результат со статусом ERROR и не поднимаются выше.
func (c *Client) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	acceptanceToken, err := c.acceptanceToken(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("acceptance token handshake failed")
		return errorResult(err), nil
	}

	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}

	payload := map[string]any{
		"amount_in_cents":  req.AmountInCents,
		"currency":         req.Currency,
		"customer_email":   req.CustomerEmail,
		"acceptance_token": acceptanceToken,
		"payment_method": map[string]any{
			"type":         "CARD",
			"token":        req.Token,
			"installments": installments,
		},
		"reference": req.Reference,
		"signature": c.buildIntegrity(req.Reference, req.AmountInCents, req.Currency),
	}

	var resp transactionResponse
	raw, err := c.doJSONRaw(ctx, http.MethodPost, "/transactions", c.cfg.PrivateKey, payload, &resp)
	if err != nil {
		c.logger.WithError(err).WithField("reference", req.Reference).Warn("charge request failed")
		result := errorResult(err)
		result.Raw = raw
		return result, nil
	}

	status := MapStatus(resp.Data.Status)
	c.logger.WithFields(log.Fields{
		"reference":   req.Reference,
		"external_id": resp.Data.ID,
		"status":      status,
	}).Info("charge submitted")

	return domain.ChargeResult{
		Status:     status,
		ExternalID: resp.Data.ID,
		Raw:        raw,
	}, nil
}

// GetTransactionStatus возвращает текущий статус charge по ссылке мерчанта.
// Если шлюз ещё не знает такую ссылку, считаем платёж PENDING.
func (c *Client) GetTransactionStatus(ctx context.Context, reference string) (domain.Status, error) {
	path := "/transactions?reference=" + url.QueryEscape(reference)

	var resp transactionListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, c.cfg.PrivateKey, nil, &resp); err != nil {
		return "", fmt.Errorf("get transaction status: %w", err)
	}
	if len(resp.Data) == 0 {
		return domain.StatusPending, nil
	}
	return MapStatus(resp.Data[0].Status), nil
}

// buildIntegrity вычисляет integrity-подпись charge-запроса:
// SHA-256 от reference + amount + currency + integrity key.
func (c *Client) buildIntegrity(reference string, amountInCents int64, currency string) string {
	plain := reference + strconv.FormatInt(amountInCents, 10) + currency + c.cfg.IntegrityKey
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// acceptanceToken выполняет pre-charge handshake: GET /merchants/{public key}.
func (c *Client) acceptanceToken(ctx context.Context) (string, error) {
	var resp merchantResponse
	if err := c.doJSON(ctx, http.MethodGet, "/merchants/"+c.cfg.PublicKey, "", nil, &resp); err != nil {
		return "", err
	}
	token := resp.Data.PresignedAcceptance.AcceptanceToken
	if token == "" {
		return "", domain.ErrAcceptanceTokenMissing
	}
	return token, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, body, out any) error {
	_, err := c.doJSONRaw(ctx, method, path, bearer, body, out)
	return err
}

// doJSONRaw выполняет запрос и возвращает сырой ответ шлюза вместе с ошибкой:
// тело нужно вызывающему даже при не-2xx статусе (поле Raw результата charge).
func (c *Client) doJSONRaw(ctx context.Context, method, path, bearer string, body, out any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, truncateForLog(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode gateway response: %w", err)
		}
	}

	return raw, nil
}

func errorResult(err error) domain.ChargeResult {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return domain.ChargeResult{
		Status: domain.StatusError,
		Raw:    raw,
	}
}

func truncateForLog(raw []byte) string {
	const maxLen = 512
	if len(raw) > maxLen {
		return string(raw[:maxLen]) + "..."
	}
	return string(raw)
}

var _ domain.PaymentGateway = (*Client)(nil)
