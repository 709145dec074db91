package authz

import (
	"strings"

	"github.com/pih12/Pravah/models"
)

// ManageView is the single-issue management screen. Everyone sees the same
// data; only the controls differ.
type ManageView struct {
	Issue         models.Issue         `json:"issue"`
	DisplayID     string               `json:"displayId"`
	BadgeClass    string               `json:"badgeClass"`
	StatusOptions []models.IssueStatus `json:"statusOptions"`
	Editable      bool                 `json:"editable"`
	ShowSave      bool                 `json:"showSave"`
	ShowDelete    bool                 `json:"showDelete"`
}

// NewManageView disables every control unless role may update and the
// caller did not ask for a read-only view.
func NewManageView(role models.Role, issue models.Issue, readOnly bool) ManageView {
	editable := !readOnly && Can(role, OpUpdateIssue)
	return ManageView{
		Issue:         issue,
		DisplayID:     issue.DisplayID(),
		BadgeClass:    BadgeClass(issue.Status),
		StatusOptions: models.Statuses,
		Editable:      editable,
		ShowSave:      editable,
		ShowDelete:    editable && Can(role, OpDeleteIssue),
	}
}

// BadgeClass maps a status to its display badge.
func BadgeClass(status models.IssueStatus) string {
	s := strings.ToLower(string(status))
	switch {
	case s == "" || s == "submitted":
		return "submitted"
	case strings.Contains(s, "received"):
		return "received"
	case strings.Contains(s, "completed"):
		return "completed"
	case strings.Contains(s, "rejected"), s == "not started":
		return "rejected"
	case strings.Contains(s, "work"), strings.Contains(s, "construction"):
		return "work"
	default:
		return "submitted"
	}
}
