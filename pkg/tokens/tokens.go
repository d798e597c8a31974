package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 24 * time.Hour
)

// Claims carries the identity attributes embedded in issued tokens.
type Claims struct {
	Email  string `json:"email,omitempty"`
	RoleID string `json:"role_id,omitempty"`
	jwt.RegisteredClaims
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	Access        string
	AccessExpiry  time.Time
	Refresh       string
	RefreshExpiry time.Time
}

// Service issues and validates the JWT pairs handed out after a successful
// verification.
type Service struct {
	secret             []byte
	issuer             string
	audience           string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// Option is a function that configures a Service
type Option func(*Service)

// WithIssuer sets the token issuer claim
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithAudience sets the token audience claim
func WithAudience(audience string) Option {
	return func(s *Service) {
		s.audience = audience
	}
}

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.accessTokenExpiry = expiry
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.refreshTokenExpiry = expiry
	}
}

// NewService creates a token service signing with the given HMAC secret.
func NewService(secret string, options ...Option) *Service {
	s := &Service{
		secret:             []byte(secret),
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		refreshTokenExpiry: DefaultRefreshTokenExpiry,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// IssuePair issues an access and refresh token for the given user.
func (s *Service) IssuePair(userID, email, roleID string) (*Pair, error) {
	access, accessExpiry, err := s.generate(userID, email, roleID, s.accessTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, refreshExpiry, err := s.generate(userID, email, roleID, s.refreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &Pair{
		Access:        access,
		AccessExpiry:  accessExpiry,
		Refresh:       refresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func (s *Service) generate(userID, email, roleID string, expiry time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email:  email,
		RoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{s.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Parse validates a token string and returns its claims.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}
