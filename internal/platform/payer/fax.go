package payer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FaxBridge submits prior auth packets through an outbound fax service when
// a payer's electronic channel is down. The bridge renders the packet to a
// cover sheet and document stack on its side; this client only delivers the
// structured payload.
type FaxBridge struct {
	baseURL string
	client  *http.Client
}

func NewFaxBridge(baseURL string, timeout time.Duration) *FaxBridge {
	return &FaxBridge{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type faxRequest struct {
	To         string             `json:"to"`
	Submission PriorAuthSubmission `json:"submission"`
}

// Send queues the submission for fax delivery to the payer's intake number.
func (f *FaxBridge) Send(ctx context.Context, faxNumber string, sub PriorAuthSubmission) error {
	if faxNumber == "" {
		return &Error{Op: "send_fax", Code: CodeMalformed, Message: "payer has no fax number on file"}
	}

	body, err := json.Marshal(faxRequest{To: faxNumber, Submission: sub})
	if err != nil {
		return fmt.Errorf("marshal fax request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/outbound", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fax request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return classifyTransportError("send_fax", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Op: "send_fax", Code: CodeUnavailable,
			Message: fmt.Sprintf("fax bridge returned status %d", resp.StatusCode), Transient: true}
	default:
		return &Error{Op: "send_fax", Code: CodeMalformed,
			Message: fmt.Sprintf("fax bridge returned status %d", resp.StatusCode)}
	}
}
