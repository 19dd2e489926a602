package priorauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcm/rcm/internal/domain/authrules"
)

// PgDocumentSource reads chart documents from the chart_document table. Rows
// are loaded by the practice's chart ingestion pipeline.
type PgDocumentSource struct {
	pool *pgxpool.Pool
}

func NewPgDocumentSource(pool *pgxpool.Pool) *PgDocumentSource {
	return &PgDocumentSource{pool: pool}
}

func (s *PgDocumentSource) Fetch(ctx context.Context, patientID uuid.UUID, kind string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT title, content FROM chart_document
		WHERE patient_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1`, patientID, kind)

	var doc Document
	err := row.Scan(&doc.Title, &doc.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch chart document: %w", err)
	}
	doc.Kind = kind
	return &doc, nil
}

// ChartSummarizer builds the clinical rationale narrative out of the chart's
// clinical notes and treatment history.
type ChartSummarizer struct {
	docs DocumentSource
}

func NewChartSummarizer(docs DocumentSource) *ChartSummarizer {
	return &ChartSummarizer{docs: docs}
}

func (s *ChartSummarizer) Summarize(ctx context.Context, patientID uuid.UUID, serviceCode string) (string, error) {
	var parts []string
	for _, kind := range []string{authrules.DocClinicalNotes, authrules.DocTreatmentHistory} {
		doc, err := s.docs.Fetch(ctx, patientID, kind)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(doc.Content) != "" {
			parts = append(parts, strings.TrimSpace(doc.Content))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return fmt.Sprintf("Requested service %s. %s", serviceCode, strings.Join(parts, " ")), nil
}
