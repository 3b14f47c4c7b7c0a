// Package mercadopago provides a client for the Mercado Pago payments API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/config"
)

// Client implements service.PaymentProcessor against the Mercado Pago REST API.
type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewClient creates a new Mercado Pago client.
func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// PaymentRequest is the payload for creating a PIX payment.
type PaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	DateOfExpiration  string  `json:"date_of_expiration,omitempty"`
	Payer             Payer   `json:"payer"`
}

// Payer identifies who is being charged.
type Payer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}

// PaymentResponse is the subset of the Mercado Pago payment object we consume.
type PaymentResponse struct {
	ID                 int64  `json:"id"`
	Status             string `json:"status"`
	StatusDetail       string `json:"status_detail"`
	DateApproved       string `json:"date_approved"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// CreatePayment creates a new PIX payment. The idempotency key prevents
// duplicate charges when the request is retried.
func (c *Client) CreatePayment(ctx context.Context, payment *PaymentRequest) (*PaymentResponse, error) {
	payment.PaymentMethodID = "pix"

	jsonBody, err := json.Marshal(payment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	return c.do(req)
}

// GetPayment fetches the current state of a payment by its provider ID.
func (c *Client) GetPayment(ctx context.Context, providerID string) (*PaymentResponse, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, providerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// CancelPayment marks a pending payment as cancelled at the provider.
func (c *Client) CancelPayment(ctx context.Context, providerID string) error {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, providerID)
	body := bytes.NewReader([]byte(`{"status":"cancelled"}`))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) (*PaymentResponse, error) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("mercadopago error (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("mercadopago error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var payment PaymentResponse
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &payment, nil
}

// FormatExpiration renders a timestamp in the provider's expected
// ISO-8601-with-offset form.
func FormatExpiration(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000-07:00")
}
