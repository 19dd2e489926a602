package authrules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resolver answers "does this payer require prior auth for this service".
type Resolver struct {
	repo   Repository
	logger zerolog.Logger
}

func NewResolver(repo Repository, logger zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve looks up the payer's policy for a service code. When no rule is on
// file the resolver fails open: the returned requirement demands neither
// prior auth nor a referral, carries Known=false, and a warning is logged so
// the rules team can backfill the gap.
func (r *Resolver) Resolve(ctx context.Context, payerID uuid.UUID, serviceCode string) (*Requirement, error) {
	if payerID == uuid.Nil {
		return nil, fmt.Errorf("payer ID is required")
	}
	if serviceCode == "" {
		return nil, fmt.Errorf("service code is required")
	}

	rule, err := r.repo.Get(ctx, payerID, serviceCode)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn().
			Str("payer_id", payerID.String()).
			Str("service_code", serviceCode).
			Msg("no authorization rule on file, failing open to no prior auth required")
		return &Requirement{
			PayerID:     payerID,
			ServiceCode: serviceCode,
			Known:       false,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Requirement{
		PayerID:           rule.PayerID,
		ServiceCode:       rule.ServiceCode,
		PARequired:        rule.PARequired,
		ReferralRequired:  rule.ReferralRequired,
		RequiredDocs:      rule.RequiredDocs,
		NecessityKeywords: rule.NecessityKeywords,
		Known:             true,
	}, nil
}

// Save validates and stores a rule.
func (r *Resolver) Save(ctx context.Context, rule *Rule) error {
	if rule.PayerID == uuid.Nil {
		return fmt.Errorf("payer ID is required")
	}
	if rule.ServiceCode == "" {
		return fmt.Errorf("service code is required")
	}
	return r.repo.Upsert(ctx, rule)
}

func (r *Resolver) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]*Rule, error) {
	return r.repo.ListByPayer(ctx, payerID)
}
