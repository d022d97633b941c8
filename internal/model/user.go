package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleID decodes identifiers the backend sends either as JSON
// strings or as numbers.
type FlexibleID string

// UnmarshalJSON accepts "42", 42 and null.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// String returns the identifier as a plain string.
func (id FlexibleID) String() string { return string(id) }

// User is the signed-in customer or admin as returned by the login endpoint.
type User struct {
	ID       FlexibleID `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"fullName,omitempty"`
	Role     string     `json:"role,omitempty"`
}

// IsAdmin reports whether the user may open the back-office screens.
func (u User) IsAdmin() bool {
	return strings.EqualFold(strings.TrimPrefix(u.Role, "ROLE_"), "admin")
}

// DisplayName returns the full name, falling back to the email.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Tokens is the credential pair held by a session.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
