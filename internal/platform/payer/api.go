package payer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// APIClient speaks the structured API/EDI channel: JSON over HTTPS against a
// payer's eligibility and prior-auth endpoints.
type APIClient struct {
	baseURL string
	payerID string
	client  *http.Client
}

func NewAPIClient(baseURL, payerID string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		payerID: payerID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) CheckEligibility(ctx context.Context, memberID string) (*CoverageData, error) {
	if memberID == "" {
		return nil, &Error{Op: "check_eligibility", Code: CodeMissingMemberID, Message: "missing member ID"}
	}

	body, _ := json.Marshal(map[string]string{
		"member_id": memberID,
		"payer_id":  c.payerID,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/eligibility", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build eligibility request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("check_eligibility", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("check_eligibility", resp.StatusCode); err != nil {
		return nil, err
	}

	var data CoverageData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &Error{Op: "check_eligibility", Code: CodeMalformed, Message: err.Error()}
	}
	return &data, nil
}

func (c *APIClient) SubmitPriorAuth(ctx context.Context, sub PriorAuthSubmission) (*AuthDecision, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal prior-auth submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prior-auth", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prior-auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("submit_prior_auth", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("submit_prior_auth", resp.StatusCode); err != nil {
		return nil, err
	}

	var decision AuthDecision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return nil, &Error{Op: "submit_prior_auth", Code: CodeMalformed, Message: err.Error()}
	}
	return &decision, nil
}

// classifyTransportError maps Go HTTP client failures onto the connector
// error taxonomy. Timeouts and connection failures are transient.
func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Op: op, Code: CodeTimeout, Message: err.Error(), Transient: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Code: CodeTimeout, Message: err.Error(), Transient: true}
	}
	return &Error{Op: op, Code: CodeUnavailable, Message: err.Error(), Transient: true}
}

// classifyStatus maps HTTP status codes: 5xx and 429 are transient, 404 means
// the member is unknown, other 4xx are permanent protocol errors.
func classifyStatus(op string, status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return &Error{Op: op, Code: CodeUnknownMember, Message: "member not found"}
	case status == http.StatusTooManyRequests || status >= 500:
		return &Error{Op: op, Code: CodeUnavailable, Message: fmt.Sprintf("payer returned %d", status), Transient: true}
	default:
		return &Error{Op: op, Code: CodeMalformed, Message: fmt.Sprintf("payer returned %d", status)}
	}
}
