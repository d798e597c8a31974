package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Record is the durable auth session written after a successful verification.
// All fields are cleared together on forced logout.
type Record struct {
	AccessToken    string          `json:"access_token"`
	RefreshToken   string          `json:"refresh_token"`
	UserID         string          `json:"user_id"`
	User           json.RawMessage `json:"user,omitempty"`
	RoleNameEnc    string          `json:"role_name_enc,omitempty"`
	PermissionsEnc string          `json:"permissions_enc,omitempty"`
}

// EncodeBlob serializes v to JSON and base64-encodes the result, the format
// used for the role-name and permission session entries.
func EncodeBlob(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal blob: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBlob reverses EncodeBlob into out.
func DecodeBlob(enc string, out interface{}) error {
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return fmt.Errorf("failed to decode blob: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal blob: %w", err)
	}
	return nil
}
