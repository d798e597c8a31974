package verifyapi

import "time"

// User is the profile payload the verification backend serves.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	RoleID    string `json:"role_id,omitempty"`
}

// Role references the permission set attached to a user.
type Role struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PermissionID string `json:"permission_id"`
}

// Permissions is an opaque permission-key map.
type Permissions map[string]bool

// VerifyRequest is the payload for the verify-code operation.
type VerifyRequest struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	DeviceInfo string `json:"device_info,omitempty"`
}

// VerifyResponse is the successful verify-code result.
type VerifyResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	UserID  string `json:"user_id"`
	User    *User  `json:"user,omitempty"`
}

// ResendRequest is the payload for the resend-code operation. It is also the
// payload for the initial login operation, which issues the first challenge.
// Lat/Lng are the device's current location and only meaningful on login.
type ResendRequest struct {
	Email      string   `json:"email"`
	DeviceInfo string   `json:"device_info,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// DebugInfo carries the pre-filled code surfaced outside production flows.
type DebugInfo struct {
	VerificationCode string `json:"verification_code"`
}

// ResendResponse is the successful resend-code result. Fields the server
// omits keep their zero value; the caller merges them partially. Lat/Lng are
// the account's last known login location.
type ResendResponse struct {
	Message               string     `json:"message,omitempty"`
	Debug                 *DebugInfo `json:"debug,omitempty"`
	ActiveSessionsCount   *int       `json:"active_sessions_count,omitempty"`
	VerificationExpiresAt *time.Time `json:"verification_expires_at,omitempty"`
	ResendAvailableAt     *time.Time `json:"resend_available_at,omitempty"`
	Lat                   *float64   `json:"lat,omitempty"`
	Lng                   *float64   `json:"lng,omitempty"`
}

// TelemetryReport is the location/device report posted after a successful
// verification.
type TelemetryReport struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	User       string  `json:"user"`
	DeviceInfo string  `json:"device_info"`
	PageStatus string  `json:"page_status"`
}

// ErrorResponse is the structured error body the backend returns.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
