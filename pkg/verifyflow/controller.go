package verifyflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fleetdesk/loginverify/pkg/authinit"
	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/pending"
	"github.com/fleetdesk/loginverify/pkg/session"
	"github.com/fleetdesk/loginverify/pkg/telemetry"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

// State identifies where the controller is in the verification flow.
type State string

const (
	StateIdle          State = "idle"
	StateAutoVerifying State = "auto_verifying"
	StateManualEntry   State = "manual_entry"
	StateVerifying     State = "verifying"
	StateSuccess       State = "success"
)

// Method records how a verification attempt was triggered.
type Method string

const (
	MethodManual Method = "manual"
	MethodLink   Method = "link"
)

// ErrorKind classifies a failed operation for the UI.
type ErrorKind string

const (
	ErrorNone           ErrorKind = ""
	ErrorValidation     ErrorKind = "validation"
	ErrorBusy           ErrorKind = "busy"
	ErrorSessionInvalid ErrorKind = "session_invalid"
	ErrorDeliveryFailed ErrorKind = "delivery_failed"
	ErrorCodeExpired    ErrorKind = "code_expired"
	ErrorCodeInvalid    ErrorKind = "code_invalid"
	ErrorNetwork        ErrorKind = "network"
	ErrorGeneric        ErrorKind = "generic"
)

// Fixed user-facing messages.
const (
	MsgMissingFields  = "Email and verification code are required."
	MsgEmailRequired  = "Email is required to resend the code."
	MsgBusy           = "A request is already in progress."
	MsgSessionInvalid = "Your login attempt is no longer valid. Please sign in again."
	MsgDeliveryFailed = "Verification code was not sent. Please try again later."
	MsgCodeExpired    = "Your verification code has expired. Please request a new code."
	MsgCodeInvalid    = "The verification code is invalid. Please check the code and try again."
	MsgNetwork        = "Network error. Please try again."
	MsgGeneric        = "Verification failed. Please try again."
	MsgCodeResent     = "A new verification code has been sent."
)

// Remote is the subset of the verification backend the controller calls.
// *verifyapi.Client satisfies it.
type Remote interface {
	Verify(ctx context.Context, req verifyapi.VerifyRequest) (*verifyapi.VerifyResponse, error)
	Resend(ctx context.Context, req verifyapi.ResendRequest) (*verifyapi.ResendResponse, error)
}

// SessionInitializer turns a successful verify response into a persisted
// session. *authinit.Initializer satisfies it.
type SessionInitializer interface {
	Initialize(ctx context.Context, resp *verifyapi.VerifyResponse, opts authinit.Options) (*verifyapi.User, error)
}

// EntryParams is how the verification page was entered: deep-link query
// parameters plus an optional record handed over by the login navigation.
type EntryParams struct {
	Email   string
	Code    string
	Lat     *float64
	Lng     *float64
	Pending *pending.Record
}

// Outcome is the result of one controller operation, consumed by the UI.
type Outcome struct {
	Authenticated bool
	RedirectLogin bool
	Kind          ErrorKind
	Message       string
}

// Controller orchestrates one login verification attempt.
type Controller struct {
	remote       Remote
	initializer  SessionInitializer
	pendingStore pending.Store
	sessionStore session.Store
	telemetry    *telemetry.Manager
	locator      geo.Locator
	deviceInfo   string
	pageStatus   string
	now          func() time.Time

	mu               sync.Mutex
	state            State
	pending          *pending.Record
	email            string
	code             string
	codeTouched      bool
	autoFired        bool
	inFlight         bool
	location         *geo.Coordinates
	locationMismatch bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTelemetry sets the telemetry manager.
func WithTelemetry(manager *telemetry.Manager) ControllerOption {
	return func(c *Controller) {
		c.telemetry = manager
	}
}

// WithLocator sets the device locator.
func WithLocator(locator geo.Locator) ControllerOption {
	return func(c *Controller) {
		c.locator = locator
	}
}

// WithDeviceInfo sets the device info string sent with remote calls.
func WithDeviceInfo(deviceInfo string) ControllerOption {
	return func(c *Controller) {
		c.deviceInfo = deviceInfo
	}
}

// WithPageStatus sets the page visibility reported with telemetry.
func WithPageStatus(pageStatus string) ControllerOption {
	return func(c *Controller) {
		c.pageStatus = pageStatus
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a verification controller.
func NewController(remote Remote, initializer SessionInitializer, pendingStore pending.Store, sessionStore session.Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		remote:       remote,
		initializer:  initializer,
		pendingStore: pendingStore,
		sessionStore: sessionStore,
		telemetry:    telemetry.NewManager(),
		locator:      geo.NewNoopLocator(),
		pageStatus:   "visible",
		now:          time.Now,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start ingests the entry parameters, rehydrates the pending record, resolves
// the device location, and fires the one automatic verification attempt when
// the deep link supplies both email and code. It returns the outcome of that
// attempt, or an empty outcome when the flow is waiting for manual input.
func (c *Controller) Start(ctx context.Context, params EntryParams) Outcome {
	c.ingestPending(ctx, params)
	c.resolveLocation(ctx)

	c.mu.Lock()
	autoFire := params.Email != "" && params.Code != "" &&
		c.email != "" && c.code != "" &&
		!c.codeTouched && !c.autoFired
	if !autoFire {
		if c.state == StateIdle {
			c.state = StateManualEntry
		}
		c.mu.Unlock()
		return Outcome{}
	}

	if c.pending.IsExpired(c.now()) {
		// Expired challenge: never auto-fire, prompt for a resend instead
		c.state = StateManualEntry
		c.mu.Unlock()
		return Outcome{Kind: ErrorCodeExpired, Message: MsgCodeExpired}
	}

	c.autoFired = true
	c.mu.Unlock()

	return c.verify(ctx, MethodLink, true)
}

// ingestPending reconciles the pending record from navigation state, the
// persisted store, and the deep-link parameters.
func (c *Controller) ingestPending(ctx context.Context, params EntryParams) {
	record := params.Pending
	if record == nil {
		loaded, err := c.pendingStore.Load(ctx)
		if err != nil {
			slog.Warn("Failed to load pending verification record", "err", err)
		}
		record = loaded
	}
	if record == nil && params.Email != "" {
		record = &pending.Record{
			Email: params.Email,
			Lat:   params.Lat,
			Lng:   params.Lng,
		}
	}

	c.mu.Lock()
	c.pending = record
	if params.Email != "" {
		c.email = params.Email
	} else if record != nil {
		c.email = record.Email
	}
	if params.Code != "" {
		c.code = params.Code
	} else if record != nil && record.DebugCode != "" {
		c.code = record.DebugCode
	}
	persist := record != nil
	var snapshot pending.Record
	if persist {
		snapshot = *record
	}
	c.mu.Unlock()

	if persist {
		if err := c.pendingStore.Save(ctx, snapshot); err != nil {
			slog.Warn("Failed to persist pending verification record", "err", err)
		}
	}
}

// resolveLocation fetches the device location once and annotates the
// location-mismatch flag. Best-effort; never blocks verification.
func (c *Controller) resolveLocation(ctx context.Context) {
	coords, err := c.locator.Locate(ctx)
	if err != nil {
		slog.Warn("Device location unavailable", "reason", err)
		return
	}
	if coords == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = coords
	if account := c.pending.AccountLocation(); account != nil {
		c.locationMismatch = geo.IsMismatch(*coords, *account)
	}
}

// SetEmail updates the email field.
func (c *Controller) SetEmail(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.email = email
}

// SetCode updates the code field and permanently disables auto-fire for this
// controller lifetime.
func (c *Controller) SetCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
	c.codeTouched = true
}

// Verify submits a manual verification attempt.
func (c *Controller) Verify(ctx context.Context) Outcome {
	return c.verify(ctx, MethodManual, false)
}

func (c *Controller) verify(ctx context.Context, method Method, auto bool) Outcome {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Outcome{Kind: ErrorBusy, Message: MsgBusy}
	}

	email := strings.TrimSpace(c.email)
	code := strings.TrimSpace(c.code)
	if email == "" || code == "" {
		c.state = StateManualEntry
		c.mu.Unlock()
		return Outcome{Kind: ErrorValidation, Message: MsgMissingFields}
	}

	c.inFlight = true
	if auto {
		c.state = StateAutoVerifying
	} else {
		c.state = StateVerifying
	}
	location := c.location
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	resp, err := c.remote.Verify(ctx, verifyapi.VerifyRequest{
		Email:      email,
		Code:       code,
		DeviceInfo: c.deviceInfo,
	})
	if err != nil {
		return c.verifyFailure(ctx, method, err)
	}

	_, err = c.initializer.Initialize(ctx, resp, authinit.Options{
		Location:       location,
		DeviceInfo:     c.deviceInfo,
		PageVisibility: c.pageStatus,
	})
	if err != nil {
		slog.Error("Failed to initialize session after verification", "email", email, "err", err)
		c.setState(StateManualEntry)
		return Outcome{Kind: ErrorGeneric, Message: MsgGeneric}
	}

	if err := c.pendingStore.Clear(ctx); err != nil {
		slog.Warn("Failed to clear pending verification record", "err", err)
	}

	c.telemetry.Emit(ctx, telemetry.Event{
		Name: "verification_success",
		Fields: map[string]string{
			"method": string(method),
			"auto":   strconv.FormatBool(auto),
		},
	})

	c.setState(StateSuccess)
	return Outcome{Authenticated: true}
}

// verifyFailure classifies a failed verify call. Any failure of a
// link-triggered attempt drops the flow into manual entry.
func (c *Controller) verifyFailure(ctx context.Context, method Method, err error) Outcome {
	slog.Warn("Verification failed", "method", method, "err", err)
	c.setState(StateManualEntry)

	switch {
	case errors.Is(err, verifyapi.ErrSessionInvalid):
		c.clearAll(ctx)
		return Outcome{RedirectLogin: true, Kind: ErrorSessionInvalid, Message: MsgSessionInvalid}
	case errors.Is(err, verifyapi.ErrDeliveryFailed):
		return Outcome{Kind: ErrorDeliveryFailed, Message: MsgDeliveryFailed}
	case errors.Is(err, verifyapi.ErrCodeExpired):
		return Outcome{Kind: ErrorCodeExpired, Message: MsgCodeExpired}
	case errors.Is(err, verifyapi.ErrCodeInvalid):
		return Outcome{Kind: ErrorCodeInvalid, Message: MsgCodeInvalid}
	case errors.Is(err, verifyapi.ErrNetwork):
		return Outcome{Kind: ErrorNetwork, Message: MsgNetwork}
	default:
		return Outcome{Kind: ErrorGeneric, Message: MsgGeneric}
	}
}

// Resend requests a fresh verification code and merges the response into the
// pending record. Fields the server omits keep their previous value.
func (c *Controller) Resend(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Outcome{Kind: ErrorBusy, Message: MsgBusy}
	}

	email := strings.TrimSpace(c.email)
	if email == "" {
		c.mu.Unlock()
		return Outcome{Kind: ErrorValidation, Message: MsgEmailRequired}
	}

	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	resp, err := c.remote.Resend(ctx, verifyapi.ResendRequest{
		Email:      email,
		DeviceInfo: c.deviceInfo,
	})
	if err != nil {
		slog.Warn("Resend failed", "email", email, "err", err)
		switch {
		case errors.Is(err, verifyapi.ErrSessionInvalid):
			c.clearAll(ctx)
			return Outcome{RedirectLogin: true, Kind: ErrorSessionInvalid, Message: MsgSessionInvalid}
		case errors.Is(err, verifyapi.ErrDeliveryFailed):
			// State stays untouched so the user can retry the resend
			return Outcome{Kind: ErrorDeliveryFailed, Message: MsgDeliveryFailed}
		case errors.Is(err, verifyapi.ErrNetwork):
			return Outcome{Kind: ErrorNetwork, Message: MsgNetwork}
		default:
			return Outcome{Kind: ErrorGeneric, Message: MsgGeneric}
		}
	}

	update := pending.Record{
		Message:               resp.Message,
		ActiveSessionsCount:   resp.ActiveSessionsCount,
		VerificationExpiresAt: resp.VerificationExpiresAt,
		ResendAvailableAt:     resp.ResendAvailableAt,
	}
	if resp.Debug != nil {
		update.DebugCode = resp.Debug.VerificationCode
	}

	c.mu.Lock()
	if c.pending == nil {
		c.pending = &pending.Record{Email: email}
	}
	if err := c.pending.Merge(update); err != nil {
		slog.Error("Failed to merge resend response", "email", email, "err", err)
	}
	if update.DebugCode != "" {
		// The fresh debug code counts as untouched so a later deep link can
		// still auto-verify with it
		c.code = update.DebugCode
		c.codeTouched = false
	}
	snapshot := *c.pending
	c.mu.Unlock()

	if err := c.pendingStore.Save(ctx, snapshot); err != nil {
		slog.Warn("Failed to persist pending verification record", "err", err)
	}

	message := resp.Message
	if message == "" {
		message = MsgCodeResent
	}
	return Outcome{Message: message}
}

// clearAll wipes both the durable session and the pending record, used when
// the server reports the login attempt is no longer valid.
func (c *Controller) clearAll(ctx context.Context) {
	if err := c.sessionStore.Clear(ctx); err != nil {
		slog.Warn("Failed to clear session", "err", err)
	}
	if err := c.pendingStore.Clear(ctx); err != nil {
		slog.Warn("Failed to clear pending verification record", "err", err)
	}
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Email returns the current email field value.
func (c *Controller) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// Code returns the current code field value.
func (c *Controller) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// Pending returns a copy of the current pending record, or nil.
func (c *Controller) Pending() *pending.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	record := *c.pending
	return &record
}

// SessionPermissions returns the permission set persisted with the current
// session, or nil when none is stored.
func (c *Controller) SessionPermissions(ctx context.Context) (verifyapi.Permissions, error) {
	record, err := c.sessionStore.Get(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil || record.PermissionsEnc == "" {
		return nil, nil
	}
	var perms verifyapi.Permissions
	if err := session.DecodeBlob(record.PermissionsEnc, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// LocationMismatch reports whether the device location differs from the
// account's last known login location by more than the mismatch threshold.
func (c *Controller) LocationMismatch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locationMismatch
}

// ExpiryDeadline returns the code-expiry timestamp driving the expiry
// countdown, or nil when none is set.
func (c *Controller) ExpiryDeadline() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.pending.VerificationExpiresAt == nil {
		return nil
	}
	t := *c.pending.VerificationExpiresAt
	return &t
}

// ResendDeadline returns the resend-cooldown timestamp driving the cooldown
// countdown, or nil when none is set.
func (c *Controller) ResendDeadline() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.pending.ResendAvailableAt == nil {
		return nil
	}
	t := *c.pending.ResendAvailableAt
	return &t
}

// ResendAvailable reports whether the resend cooldown has elapsed.
func (c *Controller) ResendAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.pending.ResendAvailableAt == nil {
		return true
	}
	return !c.now().Before(*c.pending.ResendAvailableAt)
}
