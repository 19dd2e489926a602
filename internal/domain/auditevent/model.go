// Package auditevent stores the PHI access trail. Every request against the
// API is attributed to a user and kept for compliance review.
package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// AccessRecord is one entry in the access trail: who touched which
// revenue-cycle resource, when, from where, and with what outcome.
type AccessRecord struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	UserRoles  []string  `db:"user_roles" json:"user_roles"`
	Resource   string    `db:"resource" json:"resource"`
	Action     string    `db:"action" json:"action"`
	Method     string    `db:"method" json:"method"`
	Path       string    `db:"path" json:"path"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	RequestID  string    `db:"request_id" json:"request_id"`
	StatusCode int       `db:"status_code" json:"status_code"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
