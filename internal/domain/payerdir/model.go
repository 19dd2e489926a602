package payerdir

import (
	"time"

	"github.com/google/uuid"
)

// Access methods a payer supports for eligibility and prior auth traffic.
const (
	AccessAPI    = "api"
	AccessPortal = "portal"
)

// Payer is a directory entry describing how the engine reaches one payer.
// Portal payers carry an element map binding logical coverage fields to the
// portal page's element IDs, so onboarding a portal payer is a directory
// update rather than a code change.
type Payer struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	AccessMethod string            `db:"access_method" json:"access_method"`
	APIBaseURL   *string           `db:"api_base_url" json:"api_base_url,omitempty"`
	PortalURL    *string           `db:"portal_url" json:"portal_url,omitempty"`
	ElementMap   map[string]string `db:"element_map" json:"element_map,omitempty"`
	Phone        *string           `db:"phone" json:"phone,omitempty"`
	Fax          *string           `db:"fax" json:"fax,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}
