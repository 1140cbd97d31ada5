package model

import "strings"

// RoleName is one of the closed set of permission tiers seeded into the
// `roles` table.
type RoleName string

const (
	RoleSystemAdmin RoleName = "SYSTEMADMIN"
	RoleAdmin       RoleName = "ADMIN"
	RoleEmployee    RoleName = "EMPLOYEE"
	RoleCustomer    RoleName = "CUSTOMER"
)

// AllRoles lists every role in descending privilege order.
var AllRoles = []RoleName{RoleSystemAdmin, RoleAdmin, RoleEmployee, RoleCustomer}

// ParseRoleName maps free-form input onto the enumeration.
func ParseRoleName(s string) (RoleName, bool) {
	r := RoleName(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// IsStaff reports whether the role may manage accounts other than its own.
func (r RoleName) IsStaff() bool {
	return r == RoleSystemAdmin || r == RoleAdmin
}

// Role represents a row in the `roles` table.
type Role struct {
	ID   uint8    // roles.id
	Name RoleName // roles.name
}
