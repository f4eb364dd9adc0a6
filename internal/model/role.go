package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Role is the closed set of account types. Numeric values match the
// codes used by existing clients (1 = student, 2 = trainer, 3 = nutritionist).
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleTrainer
	RoleNutritionist
)

var ErrInvalidRole = errors.New("role must be one of student, trainer, nutritionist")

var roleNames = map[Role]string{
	RoleStudent:      "student",
	RoleTrainer:      "trainer",
	RoleNutritionist: "nutritionist",
}

// String returns the lower-case role name, or "unknown".
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole accepts a role name (case-insensitive) or its numeric code.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Role(n).Valid() {
		return Role(n), nil
	}
	return RoleUnknown, ErrInvalidRole
}

// MarshalJSON encodes the role by name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts either a name ("trainer") or a numeric code (2).
func (r *Role) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = RoleUnknown
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidRole
		}
		s = strconv.Itoa(n)
	}

	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}
