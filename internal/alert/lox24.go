package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vespai/vespai-go/internal/logger"
)

// Delivery is the outcome of one transport send.
type Delivery struct {
	OK   bool
	Cost float64
}

// Transport dispatches an alert message to a recipient.
type Transport interface {
	Send(ctx context.Context, recipient, message string) (Delivery, error)
}

const defaultLox24URL = "https://api.lox24.eu/sms"

// Lox24Client sends SMS through the LOX24 HTTP API.
type Lox24Client struct {
	apiKey string
	sender string
	url    string
	httpc  *http.Client
}

// NewLox24Client creates a client authenticated with apiKey. sender is
// the SMS sender id shown to the recipient.
func NewLox24Client(apiKey, sender string) *Lox24Client {
	return &Lox24Client{
		apiKey: apiKey,
		sender: sender,
		url:    defaultLox24URL,
		httpc:  &http.Client{Timeout: 30 * time.Second},
	}
}

type lox24Request struct {
	SenderID    string `json:"sender_id"`
	Text        string `json:"text"`
	ServiceCode string `json:"service_code"`
	Phone       string `json:"phone"`
	DeliveryAt  int    `json:"delivery_at"`
	IsUnicode   bool   `json:"is_unicode"`
}

// Send posts the message to the LOX24 API. A non-201 status is returned
// as an error with the API's meaning attached; the caller treats it as
// a failed delivery, not a fatal condition.
func (c *Lox24Client) Send(ctx context.Context, recipient, message string) (Delivery, error) {
	payload, err := json.Marshal(lox24Request{
		SenderID:    c.sender,
		Text:        message,
		ServiceCode: "direct",
		Phone:       recipient,
		IsUnicode:   true,
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Delivery{}, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-LOX24-AUTH-TOKEN", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Error("SMS", "API error %d: %s (%s)", resp.StatusCode, lox24ErrorMessage(resp.StatusCode), bytes.TrimSpace(body))
		return Delivery{}, fmt.Errorf("sms api status %d: %s", resp.StatusCode, lox24ErrorMessage(resp.StatusCode))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// Delivered; the cost just cannot be accounted.
		logger.Warn("SMS", "Decode response: %v", err)
		return Delivery{OK: true}, nil
	}

	return Delivery{OK: true, Cost: extractCost(result)}, nil
}

func lox24ErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid input"
	case http.StatusUnauthorized:
		return "client id or API key isn't active or invalid"
	case http.StatusPaymentRequired:
		return "not enough funds on account"
	case http.StatusForbidden:
		return "account isn't activated"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "system error - contact LOX24 support"
	default:
		return "unknown error"
	}
}

// extractCost pulls the per-message price out of the API response. The
// field name has varied across API revisions.
func extractCost(result map[string]any) float64 {
	for _, field := range []string{"price", "cost", "total_price"} {
		if v, ok := result[field]; ok {
			if f, ok := v.(float64); ok {
				return f
			}
		}
	}
	return 0
}
