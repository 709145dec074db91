// Package authz holds the role/operation matrix every mutation passes through.
package authz

import (
	"errors"
	"fmt"

	"github.com/pih12/Pravah/models"
)

type Operation string

const (
	OpCreateIssue   Operation = "issue:create"
	OpViewIssues    Operation = "issue:view"
	OpUpdateIssue   Operation = "issue:update"
	OpDeleteIssue   Operation = "issue:delete"
	OpUpdateProfile Operation = "profile:update"
)

var ErrForbidden = errors.New("forbidden")

func Can(role models.Role, op Operation) bool {
	switch role {
	case models.RoleAdmin, models.RoleAuthority:
		return op == OpViewIssues || op == OpUpdateIssue || op == OpDeleteIssue || op == OpUpdateProfile
	case models.RolePublic:
		return op == OpCreateIssue || op == OpViewIssues || op == OpUpdateProfile
	case models.RoleNGO:
		return op == OpViewIssues || op == OpUpdateProfile
	default:
		return false
	}
}

// Authorize returns an error wrapping ErrForbidden when role may not perform op.
func Authorize(role models.Role, op Operation) error {
	if Can(role, op) {
		return nil
	}
	return fmt.Errorf("%w: role %q cannot %s", ErrForbidden, role, op)
}

// Issue fields a privileged update may write.
const (
	FieldAssignedAuthority = "assignedAuthority"
	FieldStatus            = "status"
	FieldAuthorityRemarks  = "authorityRemarks"
)

// MutableFields lists the issue fields role may change after creation.
func MutableFields(role models.Role) []string {
	if !Can(role, OpUpdateIssue) {
		return nil
	}
	return []string{FieldAssignedAuthority, FieldStatus, FieldAuthorityRemarks}
}

func Label(role models.Role) string {
	switch role {
	case models.RoleAdmin, models.RoleAuthority:
		return "Authority Official"
	case models.RoleNGO:
		return "NGO / Supervisor"
	default:
		return "Citizen"
	}
}

// Destination is the dashboard a role lands on after sign-in.
func Destination(role models.Role) string {
	switch role {
	case models.RoleAdmin, models.RoleAuthority:
		return "admin-dashboard"
	case models.RoleNGO:
		return "ngo-dashboard"
	default:
		return "public-dashboard"
	}
}

// Permissions tells a client which controls to render. It is advisory; the
// server checks every mutation again.
type Permissions struct {
	Role          models.Role `json:"role"`
	Label         string      `json:"label"`
	Destination   string      `json:"destination"`
	CanCreate     bool        `json:"canCreate"`
	CanUpdate     bool        `json:"canUpdate"`
	CanDelete     bool        `json:"canDelete"`
	ReadOnly      bool        `json:"readOnly"`
	MutableFields []string    `json:"mutableFields"`
}

func PermissionsFor(role models.Role) Permissions {
	canUpdate := Can(role, OpUpdateIssue)
	fields := MutableFields(role)
	if fields == nil {
		fields = []string{}
	}
	return Permissions{
		Role:          role,
		Label:         Label(role),
		Destination:   Destination(role),
		CanCreate:     Can(role, OpCreateIssue),
		CanUpdate:     canUpdate,
		CanDelete:     Can(role, OpDeleteIssue),
		ReadOnly:      !canUpdate,
		MutableFields: fields,
	}
}
