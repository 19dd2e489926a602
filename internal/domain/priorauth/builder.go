package priorauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/denialrisk"
)

// DocumentSource pulls chart documents by kind for a patient. ErrNotFound
// means the kind is not on the chart.
type DocumentSource interface {
	Fetch(ctx context.Context, patientID uuid.UUID, kind string) (*Document, error)
}

// RationaleSummarizer produces the clinical rationale narrative for a
// service from the patient's chart.
type RationaleSummarizer interface {
	Summarize(ctx context.Context, patientID uuid.UUID, serviceCode string) (string, error)
}

// Builder assembles documentation packages for prior auth cases.
type Builder struct {
	repo     Repository
	packages PackageRepository
	rules    RulesResolver
	docs     DocumentSource
	summary  RationaleSummarizer
	logger   zerolog.Logger
}

func NewBuilder(repo Repository, packages PackageRepository, rules RulesResolver, docs DocumentSource, summary RationaleSummarizer, logger zerolog.Logger) *Builder {
	return &Builder{
		repo:     repo,
		packages: packages,
		rules:    rules,
		docs:     docs,
		summary:  summary,
		logger:   logger,
	}
}

// Build assembles or refreshes the package for a request. It pulls every
// document kind the payer's rule demands, summarizes the clinical rationale,
// and tags which of the payer's necessity keywords the rationale supports.
// The package lands in ready_for_review when everything required is present,
// and stays a draft otherwise; a package never moves backward even when a
// rebuild finds documents gone. High-risk cases are flagged for human review.
func (b *Builder) Build(ctx context.Context, requestID uuid.UUID) (*Package, error) {
	req, err := b.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if IsTerminal(req.Status) {
		return nil, ErrTerminal
	}

	requirement, err := b.rules.Resolve(ctx, req.PayerID, req.ServiceCode)
	if err != nil {
		return nil, err
	}

	rationale, err := b.summary.Summarize(ctx, req.PatientID, req.ServiceCode)
	if err != nil {
		return nil, fmt.Errorf("summarize clinical rationale: %w", err)
	}

	var documents []Document
	complete := rationale != ""
	for _, kind := range requirement.RequiredDocs {
		doc, err := b.docs.Fetch(ctx, req.PatientID, kind)
		if errors.Is(err, ErrNotFound) {
			documents = append(documents, Document{Kind: kind, Present: false})
			complete = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch document %s: %w", kind, err)
		}
		doc.Kind = kind
		doc.Present = true
		documents = append(documents, *doc)
	}

	keywords := matchKeywords(rationale, requirement.NecessityKeywords)

	pkg, err := b.packages.GetByRequest(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		pkg = &Package{RequestID: requestID, Status: PackageDraft}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if pkg.Status == PackageSubmitted {
		return nil, fmt.Errorf("package already submitted, refusing to rebuild")
	}

	pkg.ClinicalRationale = rationale
	pkg.NecessityKeywords = keywords
	pkg.Documents = documents
	pkg.ReviewRequired = req.RiskLevel != nil && *req.RiskLevel == denialrisk.LevelHigh
	switch {
	case complete:
		pkg.Status = PackageReadyForReview
	case pkg.Status == PackageReadyForReview:
		// Package states only move forward. The recorded gaps keep the
		// submission gate closed until the chart is whole again.
		b.logger.Warn().
			Str("request_id", requestID.String()).
			Strs("missing", pkg.MissingDocs()).
			Msg("previously complete package is missing documents")
	default:
		pkg.Status = PackageDraft
		b.logger.Info().
			Str("request_id", requestID.String()).
			Strs("missing", pkg.MissingDocs()).
			Msg("documentation package incomplete")
	}

	if pkg.ID == uuid.Nil {
		err = b.packages.Create(ctx, pkg)
	} else {
		err = b.packages.Update(ctx, pkg)
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// Review records a human sign-off on a package that was flagged for review.
func (b *Builder) Review(ctx context.Context, requestID uuid.UUID, reviewer, comment string) (*Package, error) {
	if reviewer == "" {
		return nil, fmt.Errorf("reviewer is required")
	}

	pkg, err := b.packages.GetByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != PackageReadyForReview {
		return nil, fmt.Errorf("%w: package is %s", ErrPackageNotReady, pkg.Status)
	}

	pkg.ReviewedBy = &reviewer
	if comment != "" {
		pkg.ReviewComment = &comment
	}
	if err := b.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (b *Builder) Get(ctx context.Context, requestID uuid.UUID) (*Package, error) {
	return b.packages.GetByRequest(ctx, requestID)
}

// matchKeywords returns the payer keywords the rationale actually supports,
// preserving the payer's ordering.
func matchKeywords(rationale string, keywords []string) []string {
	lower := strings.ToLower(rationale)
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
