package challenge

import (
	"context"

	"github.com/fleetdesk/loginverify/pkg/geo"
)

// Repository persists pending challenges and per-user session counts.
type Repository interface {
	// GetByEmail returns the pending challenge for the email, or nil when
	// none exists.
	GetByEmail(ctx context.Context, email string) (*Challenge, error)
	// Save creates or replaces the challenge for its email.
	Save(ctx context.Context, challenge Challenge) error
	// Delete removes the challenge for the email. Deleting a missing
	// challenge is not an error.
	Delete(ctx context.Context, email string) error

	// AddSession records a new session for the user and returns the new count.
	AddSession(ctx context.Context, userID string) (int, error)
	// CountSessions returns the number of recorded sessions for the user.
	CountSessions(ctx context.Context, userID string) (int, error)

	// SetLastLocation records where the user last completed a login.
	SetLastLocation(ctx context.Context, userID string, coords geo.Coordinates) error
	// GetLastLocation returns the user's last login location, or nil when
	// unknown.
	GetLastLocation(ctx context.Context, userID string) (*geo.Coordinates, error)
}
