package authinit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/session"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

// ErrIncompleteSession is returned when the verify response is missing one of
// access, refresh or user_id. A partial session must never be persisted.
var ErrIncompleteSession = errors.New("incomplete session payload")

// API is the subset of the verification backend used for session enrichment.
// *verifyapi.Client satisfies it.
type API interface {
	GetUser(ctx context.Context, accessToken, userID string) (*verifyapi.User, error)
	GetRole(ctx context.Context, accessToken, roleID string) (*verifyapi.Role, error)
	GetPermissions(ctx context.Context, accessToken, permissionID string) (verifyapi.Permissions, error)
	ReportLocation(ctx context.Context, accessToken string, report verifyapi.TelemetryReport) error
}

// Options carries the optional context of a successful verification.
type Options struct {
	Location       *geo.Coordinates
	DeviceInfo     string
	PageVisibility string
}

// Initializer turns a successful verification into a persisted auth session.
type Initializer struct {
	store session.Store
	api   API
}

// NewInitializer creates an auth-session initializer.
func NewInitializer(store session.Store, api API) *Initializer {
	return &Initializer{
		store: store,
		api:   api,
	}
}

// Initialize persists the session for a verified login. The token triple is
// mandatory and persisting it is fatal on failure. Everything after that is
// best-effort: a verified user is signed in even if profile, role, permission
// or telemetry enrichment fails.
func (i *Initializer) Initialize(ctx context.Context, resp *verifyapi.VerifyResponse, opts Options) (*verifyapi.User, error) {
	if resp == nil || resp.Access == "" || resp.Refresh == "" || resp.UserID == "" {
		return nil, ErrIncompleteSession
	}

	if err := i.store.SetTokens(ctx, resp.Access, resp.Refresh, resp.UserID); err != nil {
		return nil, fmt.Errorf("failed to persist session tokens: %w", err)
	}

	user := resp.User
	if user == nil {
		fetched, err := i.api.GetUser(ctx, resp.Access, resp.UserID)
		if err != nil {
			slog.Error("Failed to fetch user profile", "userId", resp.UserID, "err", err)
		} else {
			user = fetched
		}
	}

	if user != nil {
		if data, err := json.Marshal(user); err != nil {
			slog.Error("Failed to marshal user profile", "userId", resp.UserID, "err", err)
		} else if err := i.store.SetUser(ctx, data); err != nil {
			slog.Error("Failed to persist user profile", "userId", resp.UserID, "err", err)
		}

		if user.RoleID != "" {
			i.persistRole(ctx, resp.Access, user.RoleID)
		}
	}

	i.reportLocation(ctx, resp.Access, resp.UserID, opts)

	return user, nil
}

// persistRole fetches the role and its permission map and stores both as
// base64-encoded JSON blobs. Best-effort.
func (i *Initializer) persistRole(ctx context.Context, accessToken, roleID string) {
	role, err := i.api.GetRole(ctx, accessToken, roleID)
	if err != nil {
		slog.Error("Failed to fetch role", "roleId", roleID, "err", err)
		return
	}

	roleNameEnc, err := session.EncodeBlob(role.Name)
	if err != nil {
		slog.Error("Failed to encode role name", "roleId", roleID, "err", err)
		return
	}

	permissionsEnc := ""
	if role.PermissionID != "" {
		perms, err := i.api.GetPermissions(ctx, accessToken, role.PermissionID)
		if err != nil {
			slog.Error("Failed to fetch permissions", "permissionId", role.PermissionID, "err", err)
		} else if permissionsEnc, err = session.EncodeBlob(perms); err != nil {
			slog.Error("Failed to encode permissions", "permissionId", role.PermissionID, "err", err)
			permissionsEnc = ""
		}
	}

	if err := i.store.SetRole(ctx, roleNameEnc, permissionsEnc); err != nil {
		slog.Error("Failed to persist role data", "roleId", roleID, "err", err)
	}
}

// reportLocation posts the device/location report when the full context is
// available. Best-effort, fire-and-forget.
func (i *Initializer) reportLocation(ctx context.Context, accessToken, userID string, opts Options) {
	if opts.Location == nil || opts.DeviceInfo == "" || opts.PageVisibility == "" {
		return
	}

	report := verifyapi.TelemetryReport{
		Latitude:   opts.Location.Latitude,
		Longitude:  opts.Location.Longitude,
		User:       userID,
		DeviceInfo: opts.DeviceInfo,
		PageStatus: opts.PageVisibility,
	}
	if err := i.api.ReportLocation(ctx, accessToken, report); err != nil {
		slog.Warn("Failed to report location telemetry", "userId", userID, "err", err)
	}
}
