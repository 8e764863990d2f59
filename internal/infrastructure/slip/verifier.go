package slip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"couponhub/internal/config"
)

var ErrSlipRejected = errors.New("payment slip rejected")

// Result is what the verification service reports about one slip.
type Result struct {
	Valid  bool   `json:"valid"`
	Amount int64  `json:"amount"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Verifier checks that a bank transfer slip pays the expected amount.
type Verifier interface {
	Verify(ctx context.Context, slipRef string, expectedAmount int64) (*Result, error)
}

// New returns the HTTP verifier when an endpoint is configured and the
// manual verifier otherwise.
func New(cfg *config.SlipConfig) Verifier {
	if cfg.Endpoint == "" {
		return ManualVerifier{}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPVerifier{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type HTTPVerifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPVerifier(endpoint, apiKey string, client *http.Client) *HTTPVerifier {
	return &HTTPVerifier{endpoint: endpoint, apiKey: apiKey, client: client}
}

type verifyRequest struct {
	SlipRef string `json:"slip_ref"`
	Amount  int64  `json:"amount"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, slipRef string, expectedAmount int64) (*Result, error) {
	body, err := json.Marshal(verifyRequest{SlipRef: slipRef, Amount: expectedAmount})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build slip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call slip verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slip verifier returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode slip result: %w", err)
	}
	if !result.Valid {
		return &result, ErrSlipRejected
	}
	if result.Amount != 0 && result.Amount != expectedAmount {
		result.Valid = false
		result.Reason = fmt.Sprintf("slip amount %d does not match %d", result.Amount, expectedAmount)
		return &result, ErrSlipRejected
	}
	return &result, nil
}

// ManualVerifier accepts every slip. Development only; an operator checks
// slips by hand.
type ManualVerifier struct{}

func (ManualVerifier) Verify(_ context.Context, slipRef string, expectedAmount int64) (*Result, error) {
	return &Result{Valid: true, Amount: expectedAmount, Ref: slipRef}, nil
}
