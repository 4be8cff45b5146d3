package domain

import dErrors "passgate/pkg/domain-errors"

// Role is the closed capability set for accounts interacting with the
// gate-pass subsystem. Privileged operations name the role they require and
// check it explicitly before touching the state machine.
type Role string

const (
	RoleResident   Role = "resident"
	RoleGuardian   Role = "guardian"
	RoleSupervisor Role = "supervisor"
	RoleGateStaff  Role = "gate_staff"
	RoleAdmin      Role = "admin"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleResident:   true,
	RoleGuardian:   true,
	RoleSupervisor: true,
	RoleGateStaff:  true,
	RoleAdmin:      true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool { return validRoles[r] }

// String returns the string representation of the role.
func (r Role) String() string { return string(r) }
