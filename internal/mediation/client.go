package mediation

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

	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
)

// DisputeContext is the structured summary handed to the mediation or
// decision capability.
type DisputeContext struct {
	DisputeID    string          `json:"dispute_id"`
	Reason       string          `json:"reason"`
	Description  string          `json:"description"`
	EscrowAmount decimal.Decimal `json:"escrow_amount"`
	Phase        string          `json:"phase"`
	Evidence     []string        `json:"evidence,omitempty"`
}

// Proposal is the structured recommendation returned by the capability.
// Outcome names one of the resolution outcomes; CustomerAmount is the part
// of the escrow proposed for refund to the customer.
type Proposal struct {
	Outcome        string          `json:"outcome"`
	CustomerAmount decimal.Decimal `json:"customer_amount"`
	Summary        string          `json:"summary"`
	Confidence     float64         `json:"confidence"`
}

// Client calls an OpenAI-compatible mediation backend.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates the mediation client.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	apiKey := os.Getenv("MEDIATION_API_KEY")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type proposeRequest struct {
	Model   string         `json:"model"`
	Dispute DisputeContext `json:"dispute"`
}

// Propose asks the backend for a settlement recommendation. Transport
// failures are retryable; the dispute stays in its current phase and the
// caller may simply call again.
func (c *Client) Propose(ctx context.Context, dispute DisputeContext) (*Proposal, error) {
	if c.baseURL == "" {
		return nil, apperror.New(apperror.ErrCodeInternal, "mediation: base URL not configured")
	}

	body, err := json.Marshal(proposeRequest{Model: c.model, Dispute: dispute})
	if err != nil {
		return nil, fmt.Errorf("mediation: marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/v1/mediation/propose"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mediation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apperror.Wrap(err, apperror.ErrCodeRetryable, "mediation: backend timeout")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeRetryable, "mediation: backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperror.New(apperror.ErrCodeRetryable, fmt.Sprintf("mediation: backend status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("mediation: backend rejected request (%d): %v", resp.StatusCode, errorBody))
	}

	var proposal Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeRetryable, "mediation: decode backend response")
	}
	return &proposal, nil
}
