package issues

import (
	"fmt"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/models"
)

// AccessPolicy is the store-side rule set. It does not consult authz so the
// route checks and these checks stay independent of each other.
type AccessPolicy struct{}

func (AccessPolicy) CanCreate(p models.Principal) error {
	if p.Subject == "" {
		return apperr.Forbidden("sign in to report an issue")
	}
	if p.Role != models.RolePublic {
		return apperr.Forbidden(fmt.Sprintf("role %q cannot report issues", p.Role))
	}
	return nil
}

func (AccessPolicy) CanModify(p models.Principal) error {
	if p.Subject == "" || !p.Role.Privileged() {
		return apperr.Forbidden("only authority officials can change issues")
	}
	return nil
}

func (AccessPolicy) CanRead(p models.Principal) error {
	if p.Subject == "" {
		return apperr.Forbidden("sign in to view issues")
	}
	if _, ok := models.ParseRole(string(p.Role)); !ok {
		return apperr.Forbidden(fmt.Sprintf("unknown role %q", p.Role))
	}
	return nil
}
