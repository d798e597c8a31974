package verifyflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdesk/loginverify/pkg/authinit"
	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/pending"
	"github.com/fleetdesk/loginverify/pkg/session"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

type fakeRemote struct {
	mu sync.Mutex

	verifyCalls  []verifyapi.VerifyRequest
	verifyResp   *verifyapi.VerifyResponse
	verifyErr    error
	verifyDelay  time.Duration
	resendCalls  []verifyapi.ResendRequest
	resendResp   *verifyapi.ResendResponse
	resendErr    error
	acceptedCode string
}

func (f *fakeRemote) Verify(ctx context.Context, req verifyapi.VerifyRequest) (*verifyapi.VerifyResponse, error) {
	f.mu.Lock()
	f.verifyCalls = append(f.verifyCalls, req)
	delay := f.verifyDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptedCode != "" && req.Code != f.acceptedCode {
		return nil, &verifyapi.APIError{StatusCode: 400, Message: "verification code is invalid", Kind: verifyapi.ErrCodeInvalid}
	}
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResp != nil {
		return f.verifyResp, nil
	}
	return &verifyapi.VerifyResponse{Access: "a", Refresh: "r", UserID: "user-1"}, nil
}

func (f *fakeRemote) Resend(ctx context.Context, req verifyapi.ResendRequest) (*verifyapi.ResendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendCalls = append(f.resendCalls, req)
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	if f.resendResp != nil {
		return f.resendResp, nil
	}
	return &verifyapi.ResendResponse{Message: "code sent"}, nil
}

func (f *fakeRemote) verifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifyCalls)
}

func newTestController(t *testing.T, remote Remote, opts ...ControllerOption) (*Controller, pending.Store, session.Store) {
	t.Helper()
	pendingStore := pending.NewInMemStore()
	sessionStore := session.NewInMemStore()
	initializer := authinit.NewInitializer(sessionStore, noopAPI{})
	c := NewController(remote, initializer, pendingStore, sessionStore, opts...)
	return c, pendingStore, sessionStore
}

type noopAPI struct{}

func (noopAPI) GetUser(ctx context.Context, accessToken, userID string) (*verifyapi.User, error) {
	return &verifyapi.User{ID: userID}, nil
}

func (noopAPI) GetRole(ctx context.Context, accessToken, roleID string) (*verifyapi.Role, error) {
	return &verifyapi.Role{ID: roleID}, nil
}

func (noopAPI) GetPermissions(ctx context.Context, accessToken, permissionID string) (verifyapi.Permissions, error) {
	return verifyapi.Permissions{}, nil
}

func (noopAPI) ReportLocation(ctx context.Context, accessToken string, report verifyapi.TelemetryReport) error {
	return nil
}

func TestStart_DeepLinkAutoFiresExactlyOnce(t *testing.T) {
	remote := &fakeRemote{}
	c, _, _ := newTestController(t, remote)
	ctx := context.Background()

	outcome := c.Start(ctx, EntryParams{Email: "a@b.com", Code: "123456"})
	assert.True(t, outcome.Authenticated)
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, 1, remote.verifyCount())

	// A second Start with the same parameters must not retrigger auto-fire
	outcome = c.Start(ctx, EntryParams{Email: "a@b.com", Code: "123456"})
	assert.False(t, outcome.Authenticated)
	assert.Equal(t, 1, remote.verifyCount())
}

func TestStart_EditedCodeSuppressesAutoFire(t *testing.T) {
	remote := &fakeRemote{}
	c, _, _ := newTestController(t, remote)

	c.SetCode("999999")
	outcome := c.Start(context.Background(), EntryParams{Email: "a@b.com", Code: "123456"})
	assert.False(t, outcome.Authenticated)
	assert.Equal(t, StateManualEntry, c.State())
	assert.Equal(t, 0, remote.verifyCount())
}

func TestStart_ManualEntryWithoutDeepLink(t *testing.T) {
	remote := &fakeRemote{}
	c, pendingStore, _ := newTestController(t, remote)
	ctx := context.Background()

	expiresAt := time.Now().Add(2 * time.Minute)
	require.NoError(t, pendingStore.Save(ctx, pending.Record{
		Email:                 "a@b.com",
		VerificationExpiresAt: &expiresAt,
	}))

	outcome := c.Start(ctx, EntryParams{})
	assert.False(t, outcome.Authenticated)
	assert.Equal(t, StateManualEntry, c.State())
	assert.Equal(t, "a@b.com", c.Email())
	assert.Equal(t, 0, remote.verifyCount())
}

func TestStart_ExpiredPendingNeverAutoFires(t *testing.T) {
	remote := &fakeRemote{}
	c, _, _ := newTestController(t, remote)

	expired := time.Now().Add(-time.Minute)
	outcome := c.Start(context.Background(), EntryParams{
		Email: "a@b.com",
		Code:  "123456",
		Pending: &pending.Record{
			Email:                 "a@b.com",
			VerificationExpiresAt: &expired,
		},
	})

	assert.Equal(t, ErrorCodeExpired, outcome.Kind)
	assert.Equal(t, StateManualEntry, c.State())
	assert.Equal(t, 0, remote.verifyCount())
}

func TestVerify_LocalValidationSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{}
	c, _, _ := newTestController(t, remote)

	c.SetEmail("a@b.com")
	c.SetCode("   ")
	outcome := c.Verify(context.Background())
	assert.Equal(t, ErrorValidation, outcome.Kind)
	assert.Equal(t, MsgMissingFields, outcome.Message)
	assert.Equal(t, 0, remote.verifyCount())
}

func TestVerify_DuplicateSubmitIsRejected(t *testing.T) {
	remote := &fakeRemote{verifyDelay: 50 * time.Millisecond}
	c, _, _ := newTestController(t, remote)
	c.SetEmail("a@b.com")
	c.SetCode("123456")

	done := make(chan Outcome, 1)
	go func() {
		done <- c.Verify(context.Background())
	}()

	// Let the first call enter flight, then submit again
	time.Sleep(10 * time.Millisecond)
	second := c.Verify(context.Background())
	assert.Equal(t, ErrorBusy, second.Kind)

	first := <-done
	assert.True(t, first.Authenticated)
	assert.Equal(t, 1, remote.verifyCount())

	// The in-flight flag resets: a later verify goes through again
	c.SetCode("123456")
	remote.mu.Lock()
	remote.verifyDelay = 0
	remote.mu.Unlock()
	third := c.Verify(context.Background())
	assert.True(t, third.Authenticated)
}

func TestVerify_SessionInvalidClearsStateAndRedirects(t *testing.T) {
	remote := &fakeRemote{
		verifyErr: &verifyapi.APIError{StatusCode: 401, Message: "login attempt not found", Kind: verifyapi.ErrSessionInvalid},
	}
	c, pendingStore, sessionStore := newTestController(t, remote)
	ctx := context.Background()

	require.NoError(t, pendingStore.Save(ctx, pending.Record{Email: "a@b.com"}))
	require.NoError(t, sessionStore.SetTokens(ctx, "stale-access", "stale-refresh", "user-1"))

	c.SetEmail("a@b.com")
	c.SetCode("123456")
	outcome := c.Verify(ctx)

	assert.True(t, outcome.RedirectLogin)
	assert.Equal(t, ErrorSessionInvalid, outcome.Kind)

	record, err := sessionStore.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)

	loaded, err := pendingStore.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestVerify_FailureClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"expired", &verifyapi.APIError{StatusCode: 400, Message: "code has expired", Kind: verifyapi.ErrCodeExpired}, ErrorCodeExpired},
		{"invalid", &verifyapi.APIError{StatusCode: 400, Message: "code is invalid", Kind: verifyapi.ErrCodeInvalid}, ErrorCodeInvalid},
		{"delivery", &verifyapi.APIError{StatusCode: 503, Code: verifyapi.ErrorCodeEmailFailed, Kind: verifyapi.ErrDeliveryFailed}, ErrorDeliveryFailed},
		{"network", verifyapi.ErrNetwork, ErrorNetwork},
		{"generic", &verifyapi.APIError{StatusCode: 500, Message: "boom"}, ErrorGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{verifyErr: tt.err}
			c, _, _ := newTestController(t, remote)
			c.SetEmail("a@b.com")
			c.SetCode("123456")

			outcome := c.Verify(context.Background())
			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, StateManualEntry, c.State())
		})
	}
}

func TestStart_LinkFailureForcesManualEntry(t *testing.T) {
	remote := &fakeRemote{
		verifyErr: &verifyapi.APIError{StatusCode: 400, Message: "code is invalid", Kind: verifyapi.ErrCodeInvalid},
	}
	c, _, _ := newTestController(t, remote)

	outcome := c.Start(context.Background(), EntryParams{Email: "a@b.com", Code: "000000"})
	assert.Equal(t, ErrorCodeInvalid, outcome.Kind)
	assert.Equal(t, StateManualEntry, c.State())
	assert.Equal(t, 1, remote.verifyCount())
}

func TestResend_MergesPartialResponse(t *testing.T) {
	newExpiry := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	remote := &fakeRemote{
		resendResp: &verifyapi.ResendResponse{
			Debug:                 &verifyapi.DebugInfo{VerificationCode: "654321"},
			VerificationExpiresAt: &newExpiry,
		},
	}
	c, pendingStore, _ := newTestController(t, remote)
	ctx := context.Background()

	sessions := 1
	require.NoError(t, pendingStore.Save(ctx, pending.Record{
		Email:               "a@b.com",
		Message:             "check your inbox",
		ActiveSessionsCount: &sessions,
	}))
	c.Start(ctx, EntryParams{})

	outcome := c.Resend(ctx)
	assert.Equal(t, ErrorNone, outcome.Kind)

	record := c.Pending()
	require.NotNil(t, record)
	assert.Equal(t, "654321", record.DebugCode)
	require.NotNil(t, record.VerificationExpiresAt)
	assert.True(t, record.VerificationExpiresAt.Equal(newExpiry))
	// Fields the response omitted keep their previous values
	assert.Equal(t, "check your inbox", record.Message)
	require.NotNil(t, record.ActiveSessionsCount)
	assert.Equal(t, sessions, *record.ActiveSessionsCount)

	// The debug code is pre-filled and counts as untouched
	assert.Equal(t, "654321", c.Code())

	// The merged record was persisted
	loaded, err := pendingStore.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "654321", loaded.DebugCode)
}

func TestResend_ThenVerifyWithDebugCodeSucceeds(t *testing.T) {
	remote := &fakeRemote{
		acceptedCode: "654321",
		resendResp: &verifyapi.ResendResponse{
			Debug: &verifyapi.DebugInfo{VerificationCode: "654321"},
		},
	}
	c, pendingStore, _ := newTestController(t, remote)
	ctx := context.Background()

	require.NoError(t, pendingStore.Save(ctx, pending.Record{Email: "a@b.com"}))
	c.Start(ctx, EntryParams{})

	outcome := c.Resend(ctx)
	require.Equal(t, ErrorNone, outcome.Kind)

	outcome = c.Verify(ctx)
	assert.True(t, outcome.Authenticated)
}

func TestResend_DeliveryFailureLeavesPendingUnchanged(t *testing.T) {
	remote := &fakeRemote{
		resendErr: &verifyapi.APIError{StatusCode: 503, Code: verifyapi.ErrorCodeEmailFailed, Kind: verifyapi.ErrDeliveryFailed},
	}
	c, pendingStore, _ := newTestController(t, remote)
	ctx := context.Background()

	expiresAt := time.Now().Add(2 * time.Minute).Truncate(time.Second)
	require.NoError(t, pendingStore.Save(ctx, pending.Record{
		Email:                 "a@b.com",
		Message:               "check your inbox",
		VerificationExpiresAt: &expiresAt,
	}))
	c.Start(ctx, EntryParams{})

	outcome := c.Resend(ctx)
	assert.Equal(t, ErrorDeliveryFailed, outcome.Kind)
	assert.Equal(t, MsgDeliveryFailed, outcome.Message)

	loaded, err := pendingStore.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "check your inbox", loaded.Message)
	require.NotNil(t, loaded.VerificationExpiresAt)
	assert.True(t, loaded.VerificationExpiresAt.Equal(expiresAt))
}

func TestResend_SessionInvalidClearsAndRedirects(t *testing.T) {
	remote := &fakeRemote{
		resendErr: &verifyapi.APIError{StatusCode: 403, Message: "forbidden", Kind: verifyapi.ErrSessionInvalid},
	}
	c, pendingStore, sessionStore := newTestController(t, remote)
	ctx := context.Background()

	require.NoError(t, pendingStore.Save(ctx, pending.Record{Email: "a@b.com"}))
	require.NoError(t, sessionStore.SetTokens(ctx, "stale", "stale", "user-1"))
	c.Start(ctx, EntryParams{})

	outcome := c.Resend(ctx)
	assert.True(t, outcome.RedirectLogin)

	loaded, err := pendingStore.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	record, err := sessionStore.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Nil(t, c.Pending())
}

func TestResend_RequiresEmail(t *testing.T) {
	remote := &fakeRemote{}
	c, _, _ := newTestController(t, remote)

	outcome := c.Resend(context.Background())
	assert.Equal(t, ErrorValidation, outcome.Kind)
	assert.Empty(t, remote.resendCalls)
}

func TestStart_LocationMismatchAnnotation(t *testing.T) {
	remote := &fakeRemote{}
	lat, lng := 41.8781, -87.6298 // Chicago, account's last login

	// Device far away (Indianapolis)
	c, _, _ := newTestController(t, remote,
		WithLocator(geo.NewStaticLocator(geo.Coordinates{Latitude: 39.7684, Longitude: -86.1581})))
	c.Start(context.Background(), EntryParams{
		Pending: &pending.Record{Email: "a@b.com", Lat: &lat, Lng: &lng},
	})
	assert.True(t, c.LocationMismatch())

	// Device nearby
	c2, _, _ := newTestController(t, remote,
		WithLocator(geo.NewStaticLocator(geo.Coordinates{Latitude: 41.9742, Longitude: -87.9073})))
	c2.Start(context.Background(), EntryParams{
		Pending: &pending.Record{Email: "a@b.com", Lat: &lat, Lng: &lng},
	})
	assert.False(t, c2.LocationMismatch())
}

func TestResendAvailable_CooldownWindow(t *testing.T) {
	remote := &fakeRemote{}
	now := time.Now()
	c, _, _ := newTestController(t, remote, WithNowFunc(func() time.Time { return now }))

	resendAt := now.Add(30 * time.Second)
	c.Start(context.Background(), EntryParams{
		Pending: &pending.Record{Email: "a@b.com", ResendAvailableAt: &resendAt},
	})

	assert.False(t, c.ResendAvailable())

	now = now.Add(31 * time.Second)
	assert.True(t, c.ResendAvailable())
}

func TestFirstAllowedRoute(t *testing.T) {
	perms := verifyapi.Permissions{"invoices.view": true, "companies.view": true}
	assert.Equal(t, "/invoices", FirstAllowedRoute(perms, DefaultRoutes))
	assert.Equal(t, FallbackRoute, FirstAllowedRoute(verifyapi.Permissions{}, DefaultRoutes))
	assert.Equal(t, FallbackRoute, FirstAllowedRoute(nil, DefaultRoutes))
}
