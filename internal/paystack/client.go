// Package paystack is a small client for the Paystack transaction API.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"renthaus/internal/config"
	"renthaus/internal/domain"
	"renthaus/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const verifyCachePrefix = "paystack:verify:"

// StatusSuccess is the transaction status of a completed charge.
const StatusSuccess = "success"

type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	logger      *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// envelope is the common shape of every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
}

func New(cfg config.PaystackConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// UseRedisCache caches successful verification results for ttl.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) InitializeTransaction(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentSession, error) {
	body := initializeBody{
		Email:       req.Email,
		Amount:      req.AmountKobo,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}
	if body.CallbackURL == "" {
		body.CallbackURL = c.callbackURL
	}

	var data initializeData
	if err := c.doPost(ctx, "initialize", c.baseURL+"/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &domain.PaymentSession{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        ref,
	}, nil
}

// VerifyTransaction fetches the gateway's view of reference. Successful
// results are served from the Redis cache when one is configured.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*domain.PaymentTransaction, error) {
	if reference == "" {
		return nil, domain.Invalid("reference is required")
	}
	cacheKey := verifyCachePrefix + reference

	if raw, ok := c.readCache(ctx, cacheKey); ok {
		tx, err := decodeTransaction(raw)
		if err == nil {
			return tx, nil
		}
		c.logger.Warn().Err(err).Str("reference", reference).Msg("Discarding unreadable verify cache entry")
	}

	var raw json.RawMessage
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	if err := c.doGet(ctx, "verify", endpoint, &raw); err != nil {
		return nil, err
	}
	tx, err := decodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	if tx.Status == StatusSuccess {
		c.writeCache(ctx, cacheKey, raw)
	}
	return tx, nil
}

func decodeTransaction(raw []byte) (*domain.PaymentTransaction, error) {
	var data verifyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx := &domain.PaymentTransaction{
		Reference:       data.Reference,
		Status:          data.Status,
		AmountKobo:      data.Amount,
		Currency:        data.Currency,
		GatewayResponse: data.GatewayResponse,
	}
	if t, err := time.Parse(time.RFC3339Nano, data.PaidAt); err == nil {
		tx.PaidAt = &t
	}
	// Paystack sends metadata as an object, or as "" when none was set.
	if len(data.Metadata) > 0 && data.Metadata[0] == '{' {
		if err := json.Unmarshal(data.Metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
	}
	if err := json.Unmarshal(raw, &tx.Raw); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

func (c *Client) readCache(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("Verify cache read failed")
		}
		return nil, false
	}
	return val, true
}

func (c *Client) writeCache(ctx context.Context, key string, raw []byte) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Verify cache write failed")
	}
}

func (c *Client) doGet(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) doPost(ctx context.Context, op, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveGateway(op, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to call paystack %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("paystack %s: http %d", op, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("paystack %s: http %d", op, resp.StatusCode)
		}
		return fmt.Errorf("failed to decode paystack %s response: %w", op, err)
	}

	if !env.Status {
		c.logger.Warn().Str("op", op).Int("http_status", resp.StatusCode).Str("message", env.Message).Msg("Paystack rejected request")
		return &domain.GatewayError{Op: op, Message: env.Message}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("paystack %s: http %d", op, resp.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode paystack %s data: %w", op, err)
	}
	return nil
}
