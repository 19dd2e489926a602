// Package payer holds the external verification channel. Two variants exist:
// a structured API/EDI exchange and an element-map driven portal extraction.
// Both satisfy the same Connector contract so the orchestration engine stays
// channel-agnostic.
package payer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CoverageData is what a payer reports back for one member.
type CoverageData struct {
	MemberID           string            `json:"member_id"`
	PlanName           string            `json:"plan_name"`
	CoverageStatus     string            `json:"coverage_status"` // active, inactive, termed
	DeductibleTotal    float64           `json:"deductible_total"`
	DeductibleMet      float64           `json:"deductible_met"`
	CopayAmount        float64           `json:"copay_amount"`
	CoinsurancePct     float64           `json:"coinsurance_pct"`
	ReferralRequired   bool              `json:"referral_required"`
	ServiceLimitations map[string]string `json:"service_limitations,omitempty"`
	EffectiveDate      *time.Time        `json:"effective_date,omitempty"`
}

// PriorAuthSubmission is the document bundle handed to the payer when a
// prior authorization is requested.
type PriorAuthSubmission struct {
	PARequestID       string     `json:"pa_request_id"`
	MemberID          string     `json:"member_id"`
	ServiceCode       string     `json:"service_code"`
	ProviderNPI       string     `json:"provider_npi"`
	ClinicalRationale string     `json:"clinical_rationale"`
	NecessityKeywords []string   `json:"necessity_keywords,omitempty"`
	Documents         []Document `json:"documents"`
}

// Document is a single attachment in a prior-auth submission.
type Document struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// AuthDecision is the payer's answer to a prior-auth submission.
type AuthDecision struct {
	Outcome    string `json:"outcome"` // approved, denied, pended, more_info
	AuthNumber string `json:"auth_number,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

const (
	OutcomeApproved = "approved"
	OutcomeDenied   = "denied"
	OutcomePended   = "pended"
	OutcomeMoreInfo = "more_info"
)

// Connector is the abstract payer channel. Implementations are network-bound
// and must honor context cancellation.
type Connector interface {
	CheckEligibility(ctx context.Context, memberID string) (*CoverageData, error)
	SubmitPriorAuth(ctx context.Context, sub PriorAuthSubmission) (*AuthDecision, error)
}

// Error is a classified connector failure. Transient failures (timeouts,
// gateway errors) are retried by callers; permanent ones (bad member ID)
// surface immediately.
type Error struct {
	Op        string
	Code      string
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("payer %s: %s (%s)", e.Op, e.Message, e.Code)
}

// IsTransient reports whether err is a connector failure worth retrying.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	// Context deadline on the connector call is a timeout, treated as transient.
	return errors.Is(err, context.DeadlineExceeded)
}

// Well-known permanent failure codes.
const (
	CodeMissingMemberID = "missing_member_id"
	CodeUnknownMember   = "unknown_member"
	CodeMalformed       = "malformed_response"
	CodeUnavailable     = "payer_unavailable"
	CodeTimeout         = "timeout"
)
