package payer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ElementMap names the portal page elements that carry each coverage field.
// Keys are logical field names, values are DOM element IDs. The map comes
// from the payer directory record, so adding a payer portal is configuration,
// not code.
type ElementMap map[string]string

// Logical field names an element map may bind.
const (
	FieldCoverageStatus   = "coverage_status"
	FieldPlanName         = "plan_name"
	FieldDeductibleTotal  = "deductible_total"
	FieldDeductibleMet    = "deductible_met"
	FieldCopayAmount      = "copay_amount"
	FieldReferralRequired = "referral_required"
	FieldAuthOutcome      = "auth_outcome"
	FieldAuthNumber       = "auth_number"
	FieldAuthReason       = "auth_reason"
)

// PortalClient drives a payer's member portal when no structured API exists.
// It fetches the benefits page for a member and pulls fields out of the
// rendered markup using the configured element map.
type PortalClient struct {
	baseURL  string
	payerID  string
	elements ElementMap
	client   *http.Client
}

func NewPortalClient(baseURL, payerID string, elements ElementMap, timeout time.Duration) *PortalClient {
	return &PortalClient{
		baseURL:  baseURL,
		payerID:  payerID,
		elements: elements,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *PortalClient) CheckEligibility(ctx context.Context, memberID string) (*CoverageData, error) {
	if memberID == "" {
		return nil, &Error{Op: "check_eligibility", Code: CodeMissingMemberID, Message: "missing member ID"}
	}

	page, err := c.fetch(ctx, "/benefits?member="+url.QueryEscape(memberID))
	if err != nil {
		return nil, err
	}

	status, ok := extractElement(page, c.elements[FieldCoverageStatus])
	if !ok {
		return nil, &Error{Op: "check_eligibility", Code: CodeMalformed,
			Message: fmt.Sprintf("portal page missing element %q", c.elements[FieldCoverageStatus])}
	}
	if strings.EqualFold(status, "member not found") {
		return nil, &Error{Op: "check_eligibility", Code: CodeUnknownMember, Message: "member not found"}
	}

	data := &CoverageData{
		MemberID:       memberID,
		CoverageStatus: strings.ToLower(status),
	}
	if v, ok := extractElement(page, c.elements[FieldPlanName]); ok {
		data.PlanName = v
	}
	if v, ok := extractElement(page, c.elements[FieldDeductibleTotal]); ok {
		data.DeductibleTotal = parseMoney(v)
	}
	if v, ok := extractElement(page, c.elements[FieldDeductibleMet]); ok {
		data.DeductibleMet = parseMoney(v)
	}
	if v, ok := extractElement(page, c.elements[FieldCopayAmount]); ok {
		data.CopayAmount = parseMoney(v)
	}
	if v, ok := extractElement(page, c.elements[FieldReferralRequired]); ok {
		data.ReferralRequired = strings.EqualFold(v, "yes") || strings.EqualFold(v, "true")
	}
	return data, nil
}

func (c *PortalClient) SubmitPriorAuth(ctx context.Context, sub PriorAuthSubmission) (*AuthDecision, error) {
	form := url.Values{}
	form.Set("member_id", sub.MemberID)
	form.Set("service_code", sub.ServiceCode)
	form.Set("provider_npi", sub.ProviderNPI)
	form.Set("rationale", sub.ClinicalRationale)
	form.Set("keywords", strings.Join(sub.NecessityKeywords, ","))
	for i, doc := range sub.Documents {
		form.Set(fmt.Sprintf("document_%d_kind", i), doc.Kind)
		form.Set(fmt.Sprintf("document_%d_title", i), doc.Title)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/prior-auth/submit", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build portal submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("submit_prior_auth", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("submit_prior_auth", resp.StatusCode); err != nil {
		return nil, err
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "submit_prior_auth", Code: CodeMalformed, Message: err.Error()}
	}

	outcome, ok := extractElement(string(page), c.elements[FieldAuthOutcome])
	if !ok {
		return nil, &Error{Op: "submit_prior_auth", Code: CodeMalformed,
			Message: fmt.Sprintf("confirmation page missing element %q", c.elements[FieldAuthOutcome])}
	}

	decision := &AuthDecision{Outcome: strings.ToLower(outcome)}
	if v, ok := extractElement(string(page), c.elements[FieldAuthNumber]); ok {
		decision.AuthNumber = v
	}
	if v, ok := extractElement(string(page), c.elements[FieldAuthReason]); ok {
		decision.Reason = v
	}
	return decision, nil
}

func (c *PortalClient) fetch(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("build portal request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportError("check_eligibility", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("check_eligibility", resp.StatusCode); err != nil {
		return "", err
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Op: "check_eligibility", Code: CodeMalformed, Message: err.Error()}
	}
	return string(page), nil
}

// extractElement pulls the text content or value attribute of the element
// with the given ID out of portal markup. Portals render benefit figures as
// either spans or pre-filled inputs; both shapes are handled.
func extractElement(page, elementID string) (string, bool) {
	if elementID == "" {
		return "", false
	}

	// <span id="x">value</span> and friends
	tag := regexp.MustCompile(`id="` + regexp.QuoteMeta(elementID) + `"[^>]*>([^<]*)<`)
	if m := tag.FindStringSubmatch(page); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), true
	}

	// <input id="x" value="value">
	input := regexp.MustCompile(`id="` + regexp.QuoteMeta(elementID) + `"[^>]*value="([^"]*)"`)
	if m := input.FindStringSubmatch(page); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	return "", false
}

func parseMoney(s string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
