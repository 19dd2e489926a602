package denialrisk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Score thresholds: below lowCeiling is low, above highFloor is high,
// everything between is medium.
const (
	lowCeiling = 0.3
	highFloor  = 0.7
)

// Predictor scores the denial risk of a prospective prior auth submission.
// Scoring is a pure read: it never mutates state and never blocks the
// submission it assesses.
type Predictor struct {
	repo Repository
}

func NewPredictor(repo Repository) *Predictor {
	return &Predictor{repo: repo}
}

// Score combines the historical denial frequency for the payer and service
// with per-request elevation rules: a required referral that is not on file
// raises the level one step, an out-of-network provider forces high.
// Elevations only ever raise the level.
func (p *Predictor) Score(ctx context.Context, payerID uuid.UUID, serviceCode string, rctx Context) (*Assessment, error) {
	if payerID == uuid.Nil {
		return nil, fmt.Errorf("payer ID is required")
	}
	if serviceCode == "" {
		return nil, fmt.Errorf("service code is required")
	}

	patterns, err := p.repo.ListByPayerService(ctx, payerID, serviceCode)
	if err != nil {
		return nil, err
	}

	a := &Assessment{Level: LevelLow}
	if len(patterns) > 0 {
		top := patterns[0]
		a.Score = top.Frequency
		a.Level = levelForScore(top.Frequency)
		a.PredictedReason = top.DenialReason
		a.RecommendedAction = top.ResolutionStrategy
		if a.Level != LevelLow {
			a.ContributingFactors = append(a.ContributingFactors,
				fmt.Sprintf("historical denial rate %.0f%% for %s", top.Frequency*100, top.DenialReason))
		}
	}

	if rctx.ReferralRequired && !rctx.ReferralOnFile {
		a.Level = bumpLevel(a.Level)
		a.ContributingFactors = append(a.ContributingFactors, "referral required but not on file")
		if a.PredictedReason == "" {
			a.PredictedReason = "missing referral"
		}
		if a.RecommendedAction == "" {
			a.RecommendedAction = "obtain referral before submission"
		}
	}
	if rctx.OutOfNetwork {
		a.Level = maxLevel(a.Level, LevelHigh)
		a.ContributingFactors = append(a.ContributingFactors, "provider is out-of-network for this payer")
		if a.PredictedReason == "" {
			a.PredictedReason = "out-of-network provider"
		}
		if a.RecommendedAction == "" {
			a.RecommendedAction = "reschedule with an in-network provider or obtain a network exception"
		}
	}
	return a, nil
}

// SavePattern validates and stores a denial pattern.
func (p *Predictor) SavePattern(ctx context.Context, pattern *Pattern) error {
	if pattern.PayerID == uuid.Nil {
		return fmt.Errorf("payer ID is required")
	}
	if pattern.ServiceCode == "" {
		return fmt.Errorf("service code is required")
	}
	if pattern.DenialReason == "" {
		return fmt.Errorf("denial reason is required")
	}
	if pattern.Frequency < 0 || pattern.Frequency > 1 {
		return fmt.Errorf("frequency must be between 0 and 1")
	}
	return p.repo.Upsert(ctx, pattern)
}

func (p *Predictor) Patterns(ctx context.Context, payerID uuid.UUID, serviceCode string) ([]*Pattern, error) {
	return p.repo.ListByPayerService(ctx, payerID, serviceCode)
}

func levelForScore(score float64) string {
	switch {
	case score > highFloor:
		return LevelHigh
	case score >= lowCeiling:
		return LevelMedium
	default:
		return LevelLow
	}
}
