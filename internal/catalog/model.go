package catalog

import (
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownProcedure indicates a referenced procedure id is not in the
// catalog for the org.
var ErrUnknownProcedure = errors.New("catalog: unknown procedure")

// Procedure is immutable reference data describing one bookable service.
type Procedure struct {
	ID              uuid.UUID `json:"id"`
	OrgID           string    `json:"org_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
}
