package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/notification"
	"github.com/fleetdesk/loginverify/pkg/tokens"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
)

var (
	ErrUnknownUser       = errors.New("unknown user")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrCodeExpired       = errors.New("verification code has expired")
	ErrCodeInvalid       = errors.New("verification code is invalid")
	ErrTooManyAttempts   = errors.New("too many verification attempts")
	ErrResendCooldown    = errors.New("resend not available yet")
	ErrEmailDelivery     = errors.New("verification email could not be sent")
)

// IssueResult describes a newly issued or refreshed challenge. Lat/Lng are
// the account's last known login location, not the challenge's.
type IssueResult struct {
	Message               string
	DebugCode             string
	ActiveSessionsCount   int
	VerificationExpiresAt time.Time
	ResendAvailableAt     time.Time
	Lat                   *float64
	Lng                   *float64
}

// VerifyResult is the issued session after a successful code check.
type VerifyResult struct {
	Access  string
	Refresh string
	User    *verifyapi.User
}

// Service issues email verification challenges and exchanges valid codes
// for token pairs.
type Service struct {
	repo          Repository
	directory     Directory
	tokens        *tokens.Service
	notifications *notification.Manager
	codeLifetime  time.Duration
	cooldown      time.Duration
	maxAttempts   int
	debugCodes    bool
	now           func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCodeLifetime sets how long an issued code stays valid.
func WithCodeLifetime(lifetime time.Duration) ServiceOption {
	return func(s *Service) {
		s.codeLifetime = lifetime
	}
}

// WithResendCooldown sets the minimum interval between resends.
func WithResendCooldown(cooldown time.Duration) ServiceOption {
	return func(s *Service) {
		s.cooldown = cooldown
	}
}

// WithMaxAttempts sets how many wrong codes are tolerated per challenge.
func WithMaxAttempts(attempts int) ServiceOption {
	return func(s *Service) {
		s.maxAttempts = attempts
	}
}

// WithDebugCodes includes the plaintext code in responses. Development only.
func WithDebugCodes(enabled bool) ServiceOption {
	return func(s *Service) {
		s.debugCodes = enabled
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, directory Directory, tokenService *tokens.Service, notifications *notification.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		repo:          repo,
		directory:     directory,
		tokens:        tokenService,
		notifications: notifications,
		codeLifetime:  DefaultCodeLifetime,
		cooldown:      DefaultResendCooldown,
		maxAttempts:   DefaultMaxAttempts,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a fresh challenge for the email and delivers the code.
func (s *Service) Issue(ctx context.Context, email string, lat, lng *float64) (*IssueResult, error) {
	user, err := s.directory.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	secret, err := GenerateTotpSecret(email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge secret: %w", err)
	}

	now := s.now()
	code, err := GeneratePasscode(secret, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate passcode: %w", err)
	}
	hash, err := HashCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}

	challenge := Challenge{
		ID:                uuid.New().String(),
		Email:             email,
		CodeHash:          hash,
		Secret:            secret,
		ExpiresAt:         now.Add(s.codeLifetime),
		ResendAvailableAt: now.Add(s.cooldown),
		AttemptsRemaining: s.maxAttempts,
		Lat:               lat,
		Lng:               lng,
		CreatedAt:         now,
	}

	if err := s.deliver(user.Email, code); err != nil {
		slog.Error("Failed to deliver verification code", "email", email, "err", err)
		return nil, ErrEmailDelivery
	}
	sentAt := now
	challenge.LastSentAt = &sentAt

	if err := s.repo.Save(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	sessions, err := s.repo.CountSessions(ctx, user.ID)
	if err != nil {
		slog.Warn("Failed to count sessions", "userID", user.ID, "err", err)
	}

	result := &IssueResult{
		Message:               "A verification code has been sent to your email.",
		ActiveSessionsCount:   sessions,
		VerificationExpiresAt: challenge.ExpiresAt,
		ResendAvailableAt:     challenge.ResendAvailableAt,
	}
	if last, err := s.repo.GetLastLocation(ctx, user.ID); err != nil {
		slog.Warn("Failed to load last login location", "userID", user.ID, "err", err)
	} else if last != nil {
		result.Lat = &last.Latitude
		result.Lng = &last.Longitude
	}
	if s.debugCodes {
		result.DebugCode = code
	}
	return result, nil
}

// Verify checks the submitted code and, when it matches, issues a token pair
// and retires the challenge.
func (s *Service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	challenge, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}

	now := s.now()
	if challenge.IsExpired(now) {
		return nil, ErrCodeExpired
	}
	if challenge.AttemptsRemaining <= 0 {
		return nil, ErrTooManyAttempts
	}

	if !CheckCode(challenge.CodeHash, code) {
		challenge.AttemptsRemaining--
		if err := s.repo.Save(ctx, *challenge); err != nil {
			slog.Warn("Failed to record failed attempt", "email", email, "err", err)
		}
		if challenge.AttemptsRemaining <= 0 {
			return nil, ErrTooManyAttempts
		}
		return nil, ErrCodeInvalid
	}

	user, err := s.directory.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.repo.Delete(ctx, email); err != nil {
		slog.Warn("Failed to delete challenge", "email", email, "err", err)
	}
	if _, err := s.repo.AddSession(ctx, user.ID); err != nil {
		slog.Warn("Failed to record session", "userID", user.ID, "err", err)
	}
	if challenge.Lat != nil && challenge.Lng != nil {
		coords := geo.Coordinates{Latitude: *challenge.Lat, Longitude: *challenge.Lng}
		if err := s.repo.SetLastLocation(ctx, user.ID, coords); err != nil {
			slog.Warn("Failed to record last login location", "userID", user.ID, "err", err)
		}
	}

	return &VerifyResult{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    user,
	}, nil
}

// Resend issues a fresh code for an existing challenge, subject to the
// resend cooldown.
func (s *Service) Resend(ctx context.Context, email string) (*IssueResult, error) {
	challenge, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}

	now := s.now()
	if !challenge.ResendAllowed(now) {
		return nil, ErrResendCooldown
	}

	code, err := GeneratePasscode(challenge.Secret, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate passcode: %w", err)
	}
	hash, err := HashCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}

	if err := s.deliver(challenge.Email, code); err != nil {
		slog.Error("Failed to deliver verification code", "email", email, "err", err)
		return nil, ErrEmailDelivery
	}

	challenge.CodeHash = hash
	challenge.ExpiresAt = now.Add(s.codeLifetime)
	challenge.ResendAvailableAt = now.Add(s.cooldown)
	challenge.AttemptsRemaining = s.maxAttempts
	sentAt := now
	challenge.LastSentAt = &sentAt

	if err := s.repo.Save(ctx, *challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	result := &IssueResult{
		Message:               "A new verification code has been sent to your email.",
		VerificationExpiresAt: challenge.ExpiresAt,
		ResendAvailableAt:     challenge.ResendAvailableAt,
	}
	if user, err := s.directory.FindUserByEmail(ctx, email); err == nil && user != nil {
		if result.ActiveSessionsCount, err = s.repo.CountSessions(ctx, user.ID); err != nil {
			slog.Warn("Failed to count sessions", "userID", user.ID, "err", err)
		}
		if last, err := s.repo.GetLastLocation(ctx, user.ID); err == nil && last != nil {
			result.Lat = &last.Latitude
			result.Lng = &last.Longitude
		}
	}
	if s.debugCodes {
		result.DebugCode = code
	}
	return result, nil
}

func (s *Service) deliver(email, code string) error {
	if s.notifications == nil {
		return nil
	}
	return s.notifications.Send(notification.VerificationCodeNotice, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"code":       code,
			"expires_in": s.codeLifetime.String(),
		},
	})
}
