package pending

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/fleetdesk/loginverify/pkg/geo"
)

// StoreKey is the fixed key the serialized record is persisted under.
const StoreKey = "pending_verification"

// Record is the server-issued challenge state associated with one login
// attempt, held client-side until the attempt is resolved.
type Record struct {
	Email                 string     `json:"email"`
	DebugCode             string     `json:"debug_code,omitempty"`
	Lat                   *float64   `json:"lat,omitempty"`
	Lng                   *float64   `json:"lng,omitempty"`
	Message               string     `json:"message,omitempty"`
	ActiveSessionsCount   *int       `json:"active_sessions_count,omitempty"`
	VerificationExpiresAt *time.Time `json:"verification_expires_at,omitempty"`
	ResendAvailableAt     *time.Time `json:"resend_available_at,omitempty"`
}

// IsExpired reports whether the verification window has closed. A record
// without an expiry timestamp never expires on its own.
func (r *Record) IsExpired(now time.Time) bool {
	if r == nil || r.VerificationExpiresAt == nil {
		return false
	}
	return now.After(*r.VerificationExpiresAt)
}

// AccountLocation returns the account's last known login coordinates, or nil
// when the record does not carry them.
func (r *Record) AccountLocation() *geo.Coordinates {
	if r == nil || r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &geo.Coordinates{Latitude: *r.Lat, Longitude: *r.Lng}
}

// Merge overlays the non-empty fields of update onto r. Fields the update
// omits keep their previous value, matching the resend partial-overwrite
// semantics.
func (r *Record) Merge(update Record) error {
	err := copier.CopyWithOption(r, &update, copier.Option{IgnoreEmpty: true})
	if err != nil {
		return fmt.Errorf("failed to merge pending verification record: %w", err)
	}
	return nil
}
