package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Update(ctx context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.DeletedAt == nil {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type mockCoverageRepo struct {
	coverage []*Coverage
}

func (m *mockCoverageRepo) Create(ctx context.Context, c *Coverage) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.coverage = append(m.coverage, c)
	return nil
}

func (m *mockCoverageRepo) GetByPatientAndPayer(ctx context.Context, patientID, payerID uuid.UUID) (*Coverage, error) {
	for _, c := range m.coverage {
		if c.PatientID == patientID && c.PayerID == payerID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockCoverageRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Coverage, error) {
	var out []*Coverage
	for _, c := range m.coverage {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockReferralRepo struct {
	referrals []*Referral
}

func (m *mockReferralRepo) Create(ctx context.Context, r *Referral) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.referrals = append(m.referrals, r)
	return nil
}

func (m *mockReferralRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Referral, error) {
	var out []*Referral
	for _, r := range m.referrals {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReferralRepo) ActiveForService(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (*Referral, error) {
	for _, r := range m.referrals {
		if r.PatientID == patientID && r.ServiceCode == serviceCode && r.ActiveOn(asOf) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService() (*Service, *mockRepo, *mockCoverageRepo, *mockReferralRepo) {
	repo := newMockRepo()
	cov := &mockCoverageRepo{}
	ref := &mockReferralRepo{}
	return NewService(repo, cov, ref), repo, cov, ref
}

func TestCreatePatient(t *testing.T) {
	svc, repo, _, _ := newTestService()

	p := &Patient{
		FirstName:   "Maria",
		LastName:    "Lopez",
		DateOfBirth: time.Date(1975, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected patient ID to be assigned")
	}
	if len(repo.patients) != 1 {
		t.Errorf("expected 1 patient, got %d", len(repo.patients))
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	badContact := "pager"

	tests := []struct {
		name    string
		patient *Patient
	}{
		{"missing name", &Patient{DateOfBirth: dob}},
		{"missing dob", &Patient{FirstName: "A", LastName: "B"}},
		{"future dob", &Patient{FirstName: "A", LastName: "B", DateOfBirth: time.Now().Add(24 * time.Hour)}},
		{"bad contact method", &Patient{FirstName: "A", LastName: "B", DateOfBirth: dob, PreferredContact: &badContact}},
		{"complexity out of range", &Patient{FirstName: "A", LastName: "B", DateOfBirth: dob, ComplexityScore: 1.5}},
		{"no-show out of range", &Patient{FirstName: "A", LastName: "B", DateOfBirth: dob, NoShowRate: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), tt.patient); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMemberID(t *testing.T) {
	svc, _, _, _ := newTestService()
	patientID := uuid.New()
	payerID := uuid.New()

	err := svc.AddCoverage(context.Background(), &Coverage{
		PatientID: patientID,
		PayerID:   payerID,
		MemberID:  "AET-1001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	memberID, err := svc.MemberID(context.Background(), patientID, payerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if memberID != "AET-1001" {
		t.Errorf("expected AET-1001, got %s", memberID)
	}

	if _, err := svc.MemberID(context.Background(), patientID, uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown payer, got %v", err)
	}
}

func TestAddCoverage_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.AddCoverage(context.Background(), &Coverage{
		PatientID: uuid.New(),
		PayerID:   uuid.New(),
	})
	if err == nil {
		t.Error("expected error for missing member ID")
	}

	err = svc.AddCoverage(context.Background(), &Coverage{
		PatientID: uuid.New(),
		PayerID:   uuid.New(),
		MemberID:  "M-1",
		Rank:      "tertiary",
	})
	if err == nil {
		t.Error("expected error for invalid rank")
	}
}

func TestHasActiveReferral(t *testing.T) {
	svc, _, _, _ := newTestService()
	patientID := uuid.New()
	now := time.Now()
	exp := now.Add(30 * 24 * time.Hour)

	err := svc.AddReferral(context.Background(), &Referral{
		PatientID:            patientID,
		ReferringProviderID:  uuid.New(),
		ReferredToProviderID: uuid.New(),
		ServiceCode:          "CPT70551",
		EffectiveDate:        now.Add(-24 * time.Hour),
		ExpirationDate:       &exp,
		Status:               "active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := svc.HasActiveReferral(context.Background(), patientID, "CPT70551", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected referral to be on file")
	}

	ok, err = svc.HasActiveReferral(context.Background(), patientID, "CPT99213", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no referral for a different service")
	}

	ok, err = svc.HasActiveReferral(context.Background(), patientID, "CPT70551", exp.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected expired referral to not count")
	}
}

func TestAddReferral_ExpirationBeforeEffective(t *testing.T) {
	svc, _, _, _ := newTestService()
	now := time.Now()
	exp := now.Add(-48 * time.Hour)

	err := svc.AddReferral(context.Background(), &Referral{
		PatientID:     uuid.New(),
		ServiceCode:   "CPT70551",
		EffectiveDate: now,
		ExpirationDate: &exp,
	})
	if err == nil {
		t.Error("expected error for expiration before effective date")
	}
}

func TestSoftDelete(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{
		FirstName:   "Del",
		LastName:    "Me",
		DateOfBirth: time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), p.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
