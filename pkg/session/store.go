package session

import "context"

// Store persists the auth session. Writes are sequential and single-writer;
// Clear wipes every session entry at once.
type Store interface {
	// Get returns the persisted session, or nil when none exists.
	Get(ctx context.Context) (*Record, error)

	// SetTokens persists the token triple, replacing any existing session.
	SetTokens(ctx context.Context, access, refresh, userID string) error

	// SetUser attaches the serialized user profile to the current session.
	SetUser(ctx context.Context, user []byte) error

	// SetRole attaches the base64-encoded role name and permission blobs to
	// the current session.
	SetRole(ctx context.Context, roleNameEnc, permissionsEnc string) error

	// Clear removes the session entirely.
	Clear(ctx context.Context) error
}
