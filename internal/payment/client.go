package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
)

// Client talks to the external payment gateway. The core only needs four
// operations against a previously authorized hold: capture, refund, void,
// plus creating the hold itself. Handles returned by the gateway are opaque.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a payment client. The request timeout bounds every call;
// an elapsed timeout surfaces as a retryable error, never a hang.
func NewClient(baseURL string, timeout time.Duration) *Client {
	apiKey := os.Getenv("PAYMENT_API_KEY")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type holdRequest struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	CustomerID string `json:"customer_id"`
}

type holdResponse struct {
	Ref string `json:"ref"`
}

type captureResponse struct {
	Receipt string `json:"receipt"`
}

type refundRequest struct {
	Amount string `json:"amount"`
}

type refundResponse struct {
	Receipt string `json:"receipt"`
}

// AuthorizeHold places a hold on the customer's payment method and returns
// the gateway handle.
func (c *Client) AuthorizeHold(ctx context.Context, amount decimal.Decimal, currency string, customerID uuid.UUID) (string, error) {
	var out holdResponse
	err := c.post(ctx, "/v1/holds", holdRequest{
		Amount:     amount.StringFixed(2),
		Currency:   currency,
		CustomerID: customerID.String(),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Ref == "" {
		return "", apperror.New(apperror.ErrCodeRetryable, "payment: gateway returned empty hold ref")
	}
	return out.Ref, nil
}

// Capture settles what remains outstanding on a previously authorized hold.
func (c *Client) Capture(ctx context.Context, ref string) (string, error) {
	var out captureResponse
	if err := c.post(ctx, "/v1/holds/"+ref+"/capture", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Receipt, nil
}

// Refund returns part or all of a captured or held amount to the customer.
func (c *Client) Refund(ctx context.Context, ref string, amount decimal.Decimal) (string, error) {
	var out refundResponse
	if err := c.post(ctx, "/v1/holds/"+ref+"/refund", refundRequest{
		Amount: amount.StringFixed(2),
	}, &out); err != nil {
		return "", err
	}
	return out.Receipt, nil
}

// Void cancels an uncaptured hold.
func (c *Client) Void(ctx context.Context, ref string) error {
	return c.post(ctx, "/v1/holds/"+ref+"/void", struct{}{}, nil)
}

// post sends a JSON request and decodes the JSON response. Transport
// failures and gateway 5xx map to retryable errors; gateway 4xx means the
// request itself was wrong and retrying cannot help.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if c.baseURL == "" {
		return apperror.New(apperror.ErrCodeInternal, "payment: base URL not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payment: marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("payment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return apperror.Wrap(err, apperror.ErrCodeRetryable, "payment: gateway timeout")
		}
		return apperror.Wrap(err, apperror.ErrCodeRetryable, "payment: gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperror.New(apperror.ErrCodeRetryable, fmt.Sprintf("payment: gateway status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("payment: gateway rejected request (%d): %v", resp.StatusCode, errorBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeRetryable, "payment: decode gateway response")
	}
	return nil
}
