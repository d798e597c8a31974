package challenge

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	TotpIssuer = "fleetdesk"

	// Period matches the code lifetime so a code stays valid until it expires
	totpPeriod = 120
	totpSkew   = 1
)

// Default challenge timings.
const (
	DefaultCodeLifetime   = 2 * time.Minute
	DefaultResendCooldown = 30 * time.Second
	DefaultMaxAttempts    = 5
)

// Challenge is one pending login verification for an email address.
type Challenge struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	CodeHash          []byte     `json:"code_hash"`
	Secret            string     `json:"secret"`
	ExpiresAt         time.Time  `json:"expires_at"`
	ResendAvailableAt time.Time  `json:"resend_available_at"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	Lat               *float64   `json:"lat,omitempty"`
	Lng               *float64   `json:"lng,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastSentAt        *time.Time `json:"last_sent_at,omitempty"`
}

// IsExpired reports whether the challenge code lifetime has elapsed.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ResendAllowed reports whether the resend cooldown has elapsed.
func (c *Challenge) ResendAllowed(now time.Time) bool {
	return !now.Before(c.ResendAvailableAt)
}

// GenerateTotpSecret creates a fresh TOTP secret for a challenge.
func GenerateTotpSecret(email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TotpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// GeneratePasscode derives the six-digit code for the secret at the given time.
func GeneratePasscode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// HashCode hashes a passcode for at-rest storage.
func HashCode(code string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
}

// CheckCode compares a submitted passcode against the stored hash.
func CheckCode(hash []byte, code string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(code)) == nil
}
