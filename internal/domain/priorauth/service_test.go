package priorauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/authrules"
	"github.com/rcm/rcm/internal/domain/denialrisk"
	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/payer"
)

type mockRepo struct {
	requests map[uuid.UUID]*Request
}

func newMockRepo() *mockRepo {
	return &mockRepo{requests: make(map[uuid.UUID]*Request)}
}

func (m *mockRepo) Create(ctx context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, r *Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockRepo) FindByAppointmentRequest(ctx context.Context, appointmentRequestID uuid.UUID) (*Request, error) {
	for _, r := range m.requests {
		if r.AppointmentRequestID != nil && *r.AppointmentRequestID == appointmentRequestID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type mockTransitions struct {
	steps []*Transition
}

func (m *mockTransitions) Append(ctx context.Context, t *Transition) error {
	m.steps = append(m.steps, t)
	return nil
}

func (m *mockTransitions) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Transition, error) {
	var out []*Transition
	for _, t := range m.steps {
		if t.RequestID == requestID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockPackages struct {
	packages map[uuid.UUID]*Package
}

func newMockPackages() *mockPackages {
	return &mockPackages{packages: make(map[uuid.UUID]*Package)}
}

func (m *mockPackages) Create(ctx context.Context, p *Package) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.packages[p.RequestID] = p
	return nil
}

func (m *mockPackages) GetByRequest(ctx context.Context, requestID uuid.UUID) (*Package, error) {
	p, ok := m.packages[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPackages) Update(ctx context.Context, p *Package) error {
	m.packages[p.RequestID] = p
	return nil
}

type mockRules struct {
	requirement *authrules.Requirement
}

func (m *mockRules) Resolve(ctx context.Context, payerID uuid.UUID, serviceCode string) (*authrules.Requirement, error) {
	req := *m.requirement
	req.PayerID = payerID
	req.ServiceCode = serviceCode
	return &req, nil
}

type mockRisk struct {
	assessment *denialrisk.Assessment
}

func (m *mockRisk) Score(ctx context.Context, payerID uuid.UUID, serviceCode string, rctx denialrisk.Context) (*denialrisk.Assessment, error) {
	return m.assessment, nil
}

type mockMembers struct{}

func (mockMembers) MemberID(ctx context.Context, patientID, payerID uuid.UUID) (string, error) {
	return "MEM-1", nil
}

type mockReferrals struct{ onFile bool }

func (m mockReferrals) HasActiveReferral(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (bool, error) {
	return m.onFile, nil
}

type mockNetwork struct{ status string }

func (m mockNetwork) NetworkStatus(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (string, error) {
	if m.status == "" {
		return "in-network", nil
	}
	return m.status, nil
}

type mockNPIs struct{}

func (mockNPIs) NPI(ctx context.Context, providerID uuid.UUID) (string, error) {
	return "1234567890", nil
}

type fakeConn struct {
	decision *payer.AuthDecision
	errs     []error
	calls    int
	lastSub  payer.PriorAuthSubmission
}

func (f *fakeConn) CheckEligibility(ctx context.Context, memberID string) (*payer.CoverageData, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) SubmitPriorAuth(ctx context.Context, sub payer.PriorAuthSubmission) (*payer.AuthDecision, error) {
	f.calls++
	f.lastSub = sub
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.decision, nil
}

type mockConnSource struct{ conn payer.Connector }

func (m mockConnSource) Channel(ctx context.Context, payerID uuid.UUID) (payer.Connector, string, error) {
	return m.conn, "api", nil
}

type mockFax struct {
	sent []string
	err  error
}

func (m *mockFax) Send(ctx context.Context, faxNumber string, sub payer.PriorAuthSubmission) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, faxNumber)
	return nil
}

type mockFaxDir struct{}

func (mockFaxDir) FaxNumber(ctx context.Context, payerID uuid.UUID) (string, error) {
	return "+1-555-0100", nil
}

type fixture struct {
	service     *Service
	repo        *mockRepo
	transitions *mockTransitions
	packages    *mockPackages
	conn        *fakeConn
	fax         *mockFax
	bus         *events.Bus
	events      *[]events.Event
}

func newFixture(requirement *authrules.Requirement, assessment *denialrisk.Assessment) *fixture {
	if requirement == nil {
		requirement = &authrules.Requirement{PARequired: true, Known: true}
	}
	if assessment == nil {
		assessment = &denialrisk.Assessment{Level: denialrisk.LevelLow}
	}

	repo := newMockRepo()
	transitions := &mockTransitions{}
	packages := newMockPackages()
	conn := &fakeConn{decision: &payer.AuthDecision{Outcome: payer.OutcomePended}}
	fax := &mockFax{}
	bus := events.NewBus(zerolog.Nop())

	var seen []events.Event
	bus.SubscribeAll(func(ctx context.Context, e events.Event) {
		seen = append(seen, e)
	})

	service := NewService(ServiceDeps{
		Repo:        repo,
		Transitions: transitions,
		Packages:    packages,
		Rules:       &mockRules{requirement: requirement},
		Risk:        &mockRisk{assessment: assessment},
		Members:     mockMembers{},
		Referrals:   mockReferrals{onFile: true},
		Network:     mockNetwork{},
		NPIs:        mockNPIs{},
		Payers:      mockConnSource{conn: conn},
		Fax:         fax,
		FaxDir:      mockFaxDir{},
		Bus:         bus,
		Retry:       payer.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		MaxInfo:     2,
		Logger:      zerolog.Nop(),
	})
	return &fixture{
		service:     service,
		repo:        repo,
		transitions: transitions,
		packages:    packages,
		conn:        conn,
		fax:         fax,
		bus:         bus,
		events:      &seen,
	}
}

func (f *fixture) initiate(t *testing.T) *Request {
	t.Helper()
	req, _, err := f.service.Initiate(context.Background(), InitiateParams{
		PatientID:   uuid.New(),
		ProviderID:  uuid.New(),
		PayerID:     uuid.New(),
		ServiceCode: "CPT70551",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return req
}

func (f *fixture) readyPackage(requestID uuid.UUID) {
	f.packages.packages[requestID] = &Package{
		ID:                uuid.New(),
		RequestID:         requestID,
		Status:            PackageReadyForReview,
		ClinicalRationale: "failed conservative treatment over six weeks",
		Documents:         []Document{{Kind: authrules.DocClinicalNotes, Title: "Clinical notes", Present: true}},
	}
}

func (f *fixture) eventTypes() []events.Type {
	var out []events.Type
	for _, e := range *f.events {
		out = append(out, e.Type)
	}
	return out
}

func hasEvent(types []events.Type, want events.Type) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestInitiate(t *testing.T) {
	f := newFixture(nil, &denialrisk.Assessment{Level: denialrisk.LevelMedium, PredictedReason: "medical necessity"})

	req := f.initiate(t)
	if req.Status != StatusInitiated {
		t.Errorf("expected initiated, got %s", req.Status)
	}
	if req.RiskLevel == nil || *req.RiskLevel != denialrisk.LevelMedium {
		t.Error("expected risk level stored on request")
	}
	if len(f.transitions.steps) != 1 || f.transitions.steps[0].ToStatus != StatusInitiated {
		t.Error("expected an opening transition record")
	}
	if !hasEvent(f.eventTypes(), events.TypeRiskAssessed) {
		t.Error("expected risk.assessed event")
	}
}

func TestInitiate_NotRequired(t *testing.T) {
	f := newFixture(&authrules.Requirement{PARequired: false, Known: true}, nil)

	_, _, err := f.service.Initiate(context.Background(), InitiateParams{
		PatientID:   uuid.New(),
		ProviderID:  uuid.New(),
		PayerID:     uuid.New(),
		ServiceCode: "CPT99213",
	})
	if !errors.Is(err, ErrNotRequired) {
		t.Errorf("expected ErrNotRequired, got %v", err)
	}
}

func TestSubmit_NoPackage(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)

	_, err := f.service.Submit(context.Background(), req.ID)
	if !errors.Is(err, ErrPackageNotReady) {
		t.Errorf("expected ErrPackageNotReady, got %v", err)
	}
}

func TestSubmit_DraftPackage(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.packages.packages[req.ID] = &Package{
		ID:        uuid.New(),
		RequestID: req.ID,
		Status:    PackageDraft,
		Documents: []Document{{Kind: authrules.DocImagingOrder, Present: false}},
	}

	_, err := f.service.Submit(context.Background(), req.ID)
	if !errors.Is(err, ErrPackageNotReady) {
		t.Errorf("expected ErrPackageNotReady, got %v", err)
	}
}

func TestSubmit_ReadyPackageWithMissingDocs(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)
	f.packages.packages[req.ID].Documents = append(f.packages.packages[req.ID].Documents,
		Document{Kind: authrules.DocImagingOrder, Present: false})

	_, err := f.service.Submit(context.Background(), req.ID)
	if !errors.Is(err, ErrPackageNotReady) {
		t.Errorf("expected ErrPackageNotReady when a document went missing, got %v", err)
	}
}

func TestSubmit_UnreviewedHighRisk(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)
	f.packages.packages[req.ID].ReviewRequired = true

	_, err := f.service.Submit(context.Background(), req.ID)
	if !errors.Is(err, ErrPackageNotReady) {
		t.Errorf("expected ErrPackageNotReady for unreviewed package, got %v", err)
	}
}

func TestSubmit_Approved(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)
	f.conn.decision = &payer.AuthDecision{Outcome: payer.OutcomeApproved, AuthNumber: "AUTH-778"}

	got, err := f.service.Submit(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	if got.AuthNumber == nil || *got.AuthNumber != "AUTH-778" {
		t.Error("expected auth number recorded")
	}
	if !hasEvent(f.eventTypes(), events.TypePAApproved) {
		t.Error("expected pa.approved event")
	}
	if f.conn.lastSub.MemberID != "MEM-1" {
		t.Errorf("unexpected member ID on wire: %s", f.conn.lastSub.MemberID)
	}
}

func TestSubmit_Denied(t *testing.T) {
	f := newFixture(nil, &denialrisk.Assessment{
		Level:             denialrisk.LevelMedium,
		RecommendedAction: "strengthen clinical rationale",
	})
	req := f.initiate(t)
	f.readyPackage(req.ID)
	f.conn.decision = &payer.AuthDecision{Outcome: payer.OutcomeDenied, Reason: "medical necessity not established"}

	got, err := f.service.Submit(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDenied {
		t.Errorf("expected denied, got %s", got.Status)
	}
	if got.DenialReason == nil || *got.DenialReason != "medical necessity not established" {
		t.Error("expected denial reason recorded")
	}

	var denied *events.Event
	for i := range *f.events {
		if (*f.events)[i].Type == events.TypePADenied {
			denied = &(*f.events)[i]
		}
	}
	if denied == nil {
		t.Fatal("expected pa.denied event")
	}
	if denied.Action != "strengthen clinical rationale" {
		t.Errorf("expected recommended action on denial event, got %q", denied.Action)
	}
}

func TestSubmit_Pended(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)

	got, err := f.service.Submit(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPendingReview {
		t.Errorf("expected pending_review, got %s", got.Status)
	}
}

func TestDecide_MoreInfoLoop(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)

	// first round trip
	if _, err := f.service.Submit(context.Background(), req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := f.service.Decide(context.Background(), req.ID, payer.OutcomeMoreInfo, "", "need imaging order", "payer")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusRequiresMoreInfo {
		t.Errorf("expected requires_more_info, got %s", got.Status)
	}
	if got.InfoRequestCount != 1 {
		t.Errorf("expected count 1, got %d", got.InfoRequestCount)
	}

	// second round trip
	if _, err := f.service.Resubmit(context.Background(), req.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	got, err = f.service.Decide(context.Background(), req.ID, payer.OutcomeMoreInfo, "", "need lab results", "payer")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusRequiresMoreInfo {
		t.Errorf("expected requires_more_info, got %s", got.Status)
	}

	// third request exceeds the bound and force-closes the case
	if _, err := f.service.Resubmit(context.Background(), req.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	got, err = f.service.Decide(context.Background(), req.ID, payer.OutcomeMoreInfo, "", "need treatment history", "payer")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != StatusDenied {
		t.Errorf("expected forced denial after exceeding info requests, got %s", got.Status)
	}
	if !hasEvent(f.eventTypes(), events.TypePAMaxInfoExceeded) {
		t.Error("expected pa.max_info_exceeded event")
	}
}

func TestSubmit_FaxFallback(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)
	f.readyPackage(req.ID)

	transient := &payer.Error{Op: "submit_prior_auth", Code: payer.CodeUnavailable, Transient: true}
	f.conn.errs = []error{transient, transient, transient}

	got, err := f.service.Submit(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPendingReview {
		t.Errorf("expected pending_review after fax fallback, got %s", got.Status)
	}
	if got.SubmissionMethod == nil || *got.SubmissionMethod != MethodFax {
		t.Error("expected fax submission method")
	}
	if len(f.fax.sent) != 1 {
		t.Errorf("expected 1 fax, got %d", len(f.fax.sent))
	}
	if f.conn.calls != 3 {
		t.Errorf("expected 3 electronic attempts before fallback, got %d", f.conn.calls)
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(nil, nil)
	req := f.initiate(t)

	got, err := f.service.Withdraw(context.Background(), req.ID, "appointment cancelled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusWithdrawn {
		t.Errorf("expected withdrawn, got %s", got.Status)
	}

	if _, err := f.service.Withdraw(context.Background(), req.ID, ""); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal on second withdraw, got %v", err)
	}
}

func TestWithdrawByAppointmentRequest(t *testing.T) {
	f := newFixture(nil, nil)
	aptReqID := uuid.New()

	req, _, err := f.service.Initiate(context.Background(), InitiateParams{
		PatientID:            uuid.New(),
		ProviderID:           uuid.New(),
		PayerID:              uuid.New(),
		ServiceCode:          "CPT70551",
		AppointmentRequestID: &aptReqID,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if err := f.service.WithdrawByAppointmentRequest(context.Background(), aptReqID, "request withdrawn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.service.GetByID(context.Background(), req.ID)
	if got.Status != StatusWithdrawn {
		t.Errorf("expected withdrawn, got %s", got.Status)
	}

	// no case for this appointment request is not an error
	if err := f.service.WithdrawByAppointmentRequest(context.Background(), uuid.New(), ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusInitiated, StatusSubmitted, true},
		{StatusInitiated, StatusApproved, false},
		{StatusSubmitted, StatusPendingReview, true},
		{StatusPendingReview, StatusApproved, true},
		{StatusPendingReview, StatusDenied, true},
		{StatusPendingReview, StatusRequiresMoreInfo, true},
		{StatusRequiresMoreInfo, StatusSubmitted, true},
		{StatusApproved, StatusDenied, false},
		{StatusDenied, StatusSubmitted, false},
		{StatusWithdrawn, StatusSubmitted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
