package denialrisk

import (
	"time"

	"github.com/google/uuid"
)

// Risk levels in ascending severity.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

var levelRank = map[string]int{
	LevelLow:    0,
	LevelMedium: 1,
	LevelHigh:   2,
}

// maxLevel returns the more severe of two levels.
func maxLevel(a, b string) string {
	if levelRank[b] > levelRank[a] {
		return b
	}
	return a
}

// bumpLevel raises a level one step; high stays high.
func bumpLevel(l string) string {
	switch l {
	case LevelLow:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Pattern is an observed denial pattern for one payer and service code,
// mined from historical claims. Frequency is the fraction of submissions
// denied for this reason.
type Pattern struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PayerID            uuid.UUID `db:"payer_id" json:"payer_id"`
	ServiceCode        string    `db:"service_code" json:"service_code"`
	DenialReason       string    `db:"denial_reason" json:"denial_reason"`
	Frequency          float64   `db:"frequency" json:"frequency"`
	ResolutionStrategy string    `db:"resolution_strategy" json:"resolution_strategy"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Context carries the per-request facts the predictor folds into the
// historical base rate.
type Context struct {
	ReferralRequired bool
	ReferralOnFile   bool
	OutOfNetwork     bool
}

// Assessment is the predictor's output. It never blocks a submission; it
// informs staff alerts and documentation emphasis.
type Assessment struct {
	Level               string   `json:"level"`
	Score               float64  `json:"score"`
	PredictedReason     string   `json:"predicted_reason,omitempty"`
	RecommendedAction   string   `json:"recommended_action,omitempty"`
	ContributingFactors []string `json:"contributing_factors,omitempty"`
}
