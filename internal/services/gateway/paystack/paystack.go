// Package paystack is the Paystack payment gateway adapter.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticket-ledger/internal/services/gateway"
	"ticket-ledger/internal/status"
)

const DefaultBaseURL = "https://api.paystack.co"

var _ gateway.Gateway = (*Client)(nil)

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	baseURL   string
	secretKey string

	// hc is the http client.
	hc *http.Client
}

func New(cfg *Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: cfg.SecretKey,
		hc:        &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Provider() gateway.Provider {
	return gateway.ProviderPaystack
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) InitializeTransaction(ctx context.Context, in *gateway.InitializeRequest) (*gateway.InitializeResponse, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("InitializeTransaction: json.Marshal: %w", err)
	}

	env, statusCode, err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("InitializeTransaction: %w", err)
	}
	if statusCode != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("InitializeTransaction: resp.StatusCode: %d, message: %s", statusCode, env.Message)
	}

	var reply gateway.InitializeResponse
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		return nil, fmt.Errorf("InitializeTransaction: json.Unmarshal: %w", err)
	}
	return &reply, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*gateway.Transaction, error) {
	env, statusCode, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, fmt.Errorf("VerifyTransaction: %w", err)
	}
	if statusCode == http.StatusNotFound ||
		(statusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(env.Message), "not found")) {
		return nil, gateway.ErrTransactionNotFound
	}
	if statusCode != http.StatusOK || !env.Status {
		return nil, fmt.Errorf("VerifyTransaction: resp.StatusCode: %d, message: %s", statusCode, env.Message)
	}

	var reply struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		return nil, fmt.Errorf("VerifyTransaction: json.Unmarshal: %w", err)
	}

	tx := &gateway.Transaction{
		Reference:   reply.Reference,
		Status:      reply.Status,
		AmountMinor: reply.Amount,
		Currency:    reply.Currency,
	}
	// metadata comes back as an empty string when none was sent
	_ = json.Unmarshal(reply.Metadata, &tx.Metadata)
	return tx, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("hc.Do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("io.ReadAll: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, raw)
	}
	return &env, resp.StatusCode, nil
}

// WebhookEvent is the payload Paystack posts to the webhook endpoint.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// SignatureHeader carries the hex HMAC-SHA512 of the raw body.
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature reports whether signature is the HMAC-SHA512 of body under the secret key.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return ValidSignature(c.secretKey, body, signature)
}

func ValidSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// ParseWebhook returns the reference carried by a signed webhook body.
func (c *Client) ParseWebhook(body []byte, signature string) (string, error) {
	if !c.VerifySignature(body, signature) {
		return "", status.ErrInvalidSignature
	}

	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return "", fmt.Errorf("ParseWebhook: json.Unmarshal: %w", err)
	}
	if evt.Data.Reference == "" {
		return "", errors.New("ParseWebhook: missing reference")
	}
	return evt.Data.Reference, nil
}
