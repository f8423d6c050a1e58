package enums

import "fmt"

// RoleName is a seeded role identifier consumed by the access guard.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleCustomer RoleName = "customer"
)

var validRoleNames = []RoleName{
	RoleAdmin,
	RoleCustomer,
}

// String implements fmt.Stringer.
func (r RoleName) String() string {
	return string(r)
}

// IsValid reports whether the value is a seeded role name.
func (r RoleName) IsValid() bool {
	for _, candidate := range validRoleNames {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRoleName converts raw input into a RoleName.
func ParseRoleName(value string) (RoleName, error) {
	for _, candidate := range validRoleNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role name %q", value)
}
