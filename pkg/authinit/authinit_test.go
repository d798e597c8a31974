package authinit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/session"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

type fakeAPI struct {
	user        *verifyapi.User
	role        *verifyapi.Role
	permissions verifyapi.Permissions

	userErr  error
	roleErr  error
	permsErr error

	locationReports []verifyapi.TelemetryReport
}

func (f *fakeAPI) GetUser(ctx context.Context, accessToken, userID string) (*verifyapi.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeAPI) GetRole(ctx context.Context, accessToken, roleID string) (*verifyapi.Role, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	return f.role, nil
}

func (f *fakeAPI) GetPermissions(ctx context.Context, accessToken, permissionID string) (verifyapi.Permissions, error) {
	if f.permsErr != nil {
		return nil, f.permsErr
	}
	return f.permissions, nil
}

func (f *fakeAPI) ReportLocation(ctx context.Context, accessToken string, report verifyapi.TelemetryReport) error {
	f.locationReports = append(f.locationReports, report)
	return nil
}

func validResponse() *verifyapi.VerifyResponse {
	return &verifyapi.VerifyResponse{
		Access:  "access-token",
		Refresh: "refresh-token",
		UserID:  "user-1",
	}
}

func TestInitialize_RejectsIncompletePayload(t *testing.T) {
	store := session.NewInMemStore()
	initializer := NewInitializer(store, &fakeAPI{})
	ctx := context.Background()

	tests := []*verifyapi.VerifyResponse{
		nil,
		{Refresh: "r", UserID: "u"},
		{Access: "a", UserID: "u"},
		{Access: "a", Refresh: "r"},
	}
	for _, resp := range tests {
		_, err := initializer.Initialize(ctx, resp, Options{})
		assert.ErrorIs(t, err, ErrIncompleteSession)
	}

	// Nothing persisted
	record, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestInitialize_FullEnrichment(t *testing.T) {
	store := session.NewInMemStore()
	api := &fakeAPI{
		user:        &verifyapi.User{ID: "user-1", Email: "a@b.com", RoleID: "role-1"},
		role:        &verifyapi.Role{ID: "role-1", Name: "dispatcher", PermissionID: "perm-1"},
		permissions: verifyapi.Permissions{"loads.view": true, "drivers.view": true},
	}
	initializer := NewInitializer(store, api)
	ctx := context.Background()

	user, err := initializer.Initialize(ctx, validResponse(), Options{
		Location:       &geo.Coordinates{Latitude: 41.8781, Longitude: -87.6298},
		DeviceInfo:     "web|chrome",
		PageVisibility: "visible",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@b.com", user.Email)

	record, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "access-token", record.AccessToken)
	assert.Equal(t, "refresh-token", record.RefreshToken)
	assert.Equal(t, "user-1", record.UserID)
	assert.NotEmpty(t, record.User)

	var roleName string
	require.NoError(t, session.DecodeBlob(record.RoleNameEnc, &roleName))
	assert.Equal(t, "dispatcher", roleName)

	var perms map[string]bool
	require.NoError(t, session.DecodeBlob(record.PermissionsEnc, &perms))
	assert.True(t, perms["loads.view"])

	require.Len(t, api.locationReports, 1)
	assert.Equal(t, "user-1", api.locationReports[0].User)
	assert.Equal(t, "visible", api.locationReports[0].PageStatus)
}

func TestInitialize_UserFromResponseSkipsFetch(t *testing.T) {
	store := session.NewInMemStore()
	api := &fakeAPI{userErr: errors.New("must not be called")}
	initializer := NewInitializer(store, api)

	resp := validResponse()
	resp.User = &verifyapi.User{ID: "user-1", Email: "a@b.com"}

	user, err := initializer.Initialize(context.Background(), resp, Options{})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestInitialize_EnrichmentFailuresAreNonFatal(t *testing.T) {
	store := session.NewInMemStore()
	api := &fakeAPI{
		userErr: errors.New("users endpoint down"),
	}
	initializer := NewInitializer(store, api)
	ctx := context.Background()

	user, err := initializer.Initialize(ctx, validResponse(), Options{})
	require.NoError(t, err)
	assert.Nil(t, user)

	// Tokens were still persisted
	record, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "access-token", record.AccessToken)
}

func TestInitialize_RoleFailureKeepsUser(t *testing.T) {
	store := session.NewInMemStore()
	api := &fakeAPI{
		user:    &verifyapi.User{ID: "user-1", Email: "a@b.com", RoleID: "role-1"},
		roleErr: errors.New("roles endpoint down"),
	}
	initializer := NewInitializer(store, api)
	ctx := context.Background()

	user, err := initializer.Initialize(ctx, validResponse(), Options{})
	require.NoError(t, err)
	require.NotNil(t, user)

	record, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotEmpty(t, record.User)
	assert.Empty(t, record.RoleNameEnc)
}

func TestInitialize_TelemetrySkippedWithoutFullContext(t *testing.T) {
	store := session.NewInMemStore()
	api := &fakeAPI{user: &verifyapi.User{ID: "user-1"}}
	initializer := NewInitializer(store, api)
	ctx := context.Background()

	// Missing location
	_, err := initializer.Initialize(ctx, validResponse(), Options{DeviceInfo: "web", PageVisibility: "visible"})
	require.NoError(t, err)

	// Missing device info
	_, err = initializer.Initialize(ctx, validResponse(), Options{
		Location:       &geo.Coordinates{Latitude: 1, Longitude: 2},
		PageVisibility: "visible",
	})
	require.NoError(t, err)

	assert.Empty(t, api.locationReports)
}
