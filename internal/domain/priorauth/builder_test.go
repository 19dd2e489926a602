package priorauth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/authrules"
	"github.com/rcm/rcm/internal/domain/denialrisk"
)

type mockDocs struct {
	chart map[string]*Document
}

func (m *mockDocs) Fetch(ctx context.Context, patientID uuid.UUID, kind string) (*Document, error) {
	doc, ok := m.chart[kind]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

type mockSummary struct {
	text string
}

func (m *mockSummary) Summarize(ctx context.Context, patientID uuid.UUID, serviceCode string) (string, error) {
	return m.text, nil
}

func newBuilderFixture(requirement *authrules.Requirement, riskLevel string, chart map[string]*Document, rationale string) (*Builder, *mockRepo, *mockPackages, uuid.UUID) {
	repo := newMockRepo()
	packages := newMockPackages()

	req := &Request{
		PatientID:   uuid.New(),
		ProviderID:  uuid.New(),
		PayerID:     uuid.New(),
		ServiceCode: "CPT70551",
		Status:      StatusInitiated,
	}
	if riskLevel != "" {
		req.RiskLevel = &riskLevel
	}
	_ = repo.Create(context.Background(), req)

	builder := NewBuilder(
		repo,
		packages,
		&mockRules{requirement: requirement},
		&mockDocs{chart: chart},
		&mockSummary{text: rationale},
		zerolog.Nop(),
	)
	return builder, repo, packages, req.ID
}

func fullChart() map[string]*Document {
	return map[string]*Document{
		authrules.DocClinicalNotes: {Title: "Clinical notes", Content: "six weeks of physical therapy without improvement"},
		authrules.DocImagingOrder:  {Title: "MRI order", Content: "MRI brain without contrast"},
	}
}

func mriRequirement() *authrules.Requirement {
	return &authrules.Requirement{
		PARequired:        true,
		RequiredDocs:      []string{authrules.DocClinicalNotes, authrules.DocImagingOrder},
		NecessityKeywords: []string{"failed conservative treatment", "neurological deficit"},
		Known:             true,
	}
}

func TestBuild_Complete(t *testing.T) {
	builder, _, _, reqID := newBuilderFixture(mriRequirement(), "",
		fullChart(), "Patient failed conservative treatment; persistent headaches.")

	pkg, err := builder.Build(context.Background(), reqID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Status != PackageReadyForReview {
		t.Errorf("expected ready_for_review, got %s", pkg.Status)
	}
	if len(pkg.Documents) != 2 {
		t.Errorf("expected 2 documents, got %d", len(pkg.Documents))
	}
	if len(pkg.NecessityKeywords) != 1 || pkg.NecessityKeywords[0] != "failed conservative treatment" {
		t.Errorf("expected matched keyword, got %v", pkg.NecessityKeywords)
	}
	if pkg.ReviewRequired {
		t.Error("low risk package must not require review")
	}
}

func TestBuild_MissingDocumentStaysDraft(t *testing.T) {
	chart := map[string]*Document{
		authrules.DocClinicalNotes: {Title: "Clinical notes", Content: "notes"},
	}
	builder, _, _, reqID := newBuilderFixture(mriRequirement(), "", chart, "rationale")

	pkg, err := builder.Build(context.Background(), reqID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Status != PackageDraft {
		t.Errorf("expected draft, got %s", pkg.Status)
	}
	missing := pkg.MissingDocs()
	if len(missing) != 1 || missing[0] != authrules.DocImagingOrder {
		t.Errorf("expected imaging order missing, got %v", missing)
	}
}

func TestBuild_HighRiskRequiresReview(t *testing.T) {
	builder, _, _, reqID := newBuilderFixture(mriRequirement(), denialrisk.LevelHigh,
		fullChart(), "failed conservative treatment")

	pkg, err := builder.Build(context.Background(), reqID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pkg.ReviewRequired {
		t.Error("high risk package must require human review")
	}
}

func TestBuild_RebuildRefreshesDraft(t *testing.T) {
	chart := map[string]*Document{
		authrules.DocClinicalNotes: {Title: "Clinical notes", Content: "notes"},
	}
	builder, _, packages, reqID := newBuilderFixture(mriRequirement(), "", chart, "rationale")

	if _, err := builder.Build(context.Background(), reqID); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// the imaging order shows up on the chart and the package is rebuilt
	chart[authrules.DocImagingOrder] = &Document{Title: "MRI order", Content: "order"}
	pkg, err := builder.Build(context.Background(), reqID)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if pkg.Status != PackageReadyForReview {
		t.Errorf("expected ready_for_review after rebuild, got %s", pkg.Status)
	}
	if len(packages.packages) != 1 {
		t.Error("rebuild must update the existing package, not create a second one")
	}
}

func TestBuild_RebuildNeverRegressesReadyPackage(t *testing.T) {
	chart := fullChart()
	builder, _, _, reqID := newBuilderFixture(mriRequirement(), "", chart, "rationale")

	if _, err := builder.Build(context.Background(), reqID); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// the imaging order is removed from the chart after the package was ready
	delete(chart, authrules.DocImagingOrder)
	pkg, err := builder.Build(context.Background(), reqID)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if pkg.Status != PackageReadyForReview {
		t.Errorf("package must not move backward, got %s", pkg.Status)
	}
	missing := pkg.MissingDocs()
	if len(missing) != 1 || missing[0] != authrules.DocImagingOrder {
		t.Errorf("rebuild must record the gap, got %v", missing)
	}
}

func TestBuild_SubmittedPackageIsImmutable(t *testing.T) {
	builder, _, packages, reqID := newBuilderFixture(mriRequirement(), "", fullChart(), "rationale")

	if _, err := builder.Build(context.Background(), reqID); err != nil {
		t.Fatalf("build: %v", err)
	}
	packages.packages[reqID].Status = PackageSubmitted

	if _, err := builder.Build(context.Background(), reqID); err == nil {
		t.Error("expected rebuild of submitted package to be refused")
	}
}

func TestReview(t *testing.T) {
	builder, _, packages, reqID := newBuilderFixture(mriRequirement(), denialrisk.LevelHigh,
		fullChart(), "failed conservative treatment")

	if _, err := builder.Build(context.Background(), reqID); err != nil {
		t.Fatalf("build: %v", err)
	}

	pkg, err := builder.Review(context.Background(), reqID, "reviewer-1", "rationale sufficient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.ReviewedBy == nil || *pkg.ReviewedBy != "reviewer-1" {
		t.Error("expected reviewer recorded")
	}

	// reviewing a draft is refused
	packages.packages[reqID].Status = PackageDraft
	if _, err := builder.Review(context.Background(), reqID, "reviewer-1", ""); !errors.Is(err, ErrPackageNotReady) {
		t.Errorf("expected ErrPackageNotReady, got %v", err)
	}
}

func TestMatchKeywords(t *testing.T) {
	matched := matchKeywords("Patient FAILED Conservative Treatment and shows neurological deficit.",
		[]string{"failed conservative treatment", "neurological deficit", "prior surgery"})
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %v", matched)
	}
	if matched[0] != "failed conservative treatment" || matched[1] != "neurological deficit" {
		t.Errorf("expected payer ordering preserved, got %v", matched)
	}
}
