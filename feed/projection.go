package feed

import (
	"time"

	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/mapview"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/stats"
)

// DisplayLimit caps the rows a dashboard renders. Stats and the map always
// use the full snapshot.
const DisplayLimit = 50

const (
	LayoutTable = "table"
	LayoutCards = "cards"
)

type Row struct {
	ID          string             `json:"id"`
	DisplayID   string             `json:"displayId"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	District    string             `json:"district"`
	ImageURL    string             `json:"imageUrl"`
	Status      models.IssueStatus `json:"status"`
	BadgeClass  string             `json:"badgeClass"`
	Created     time.Time          `json:"created"`
}

// Message is what a session receives for each snapshot.
type Message struct {
	Type        string            `json:"type"`
	Seq         uint64            `json:"seq"`
	Layout      string            `json:"layout"`
	Issues      []models.Issue    `json:"issues"`
	Display     []Row             `json:"display"`
	Stats       stats.Counts      `json:"stats"`
	Map         mapview.View      `json:"map"`
	Permissions authz.Permissions `json:"permissions"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Project renders snap for a session with the given role. Every role gets
// the same data; layout and permissions differ.
func Project(snap Snapshot, role models.Role) Message {
	layout := LayoutTable
	if role == models.RolePublic {
		layout = LayoutCards
	}

	n := len(snap.Issues)
	if n > DisplayLimit {
		n = DisplayLimit
	}
	rows := make([]Row, 0, n)
	for _, issue := range snap.Issues[:n] {
		rows = append(rows, Row{
			ID:          issue.ID.Hex(),
			DisplayID:   issue.DisplayID(),
			Type:        issue.Type,
			Description: issue.Description,
			District:    issue.District,
			ImageURL:    issue.ImageURL,
			Status:      issue.Status,
			BadgeClass:  authz.BadgeClass(issue.Status),
			Created:     issue.Timestamps.Created,
		})
	}

	list := snap.Issues
	if list == nil {
		list = []models.Issue{}
	}
	return Message{
		Type:        "snapshot",
		Seq:         snap.Seq,
		Layout:      layout,
		Issues:      list,
		Display:     rows,
		Stats:       snap.Stats,
		Map:         mapview.Project(snap.Issues),
		Permissions: authz.PermissionsFor(role),
		Timestamp:   snap.GeneratedAt,
	}
}
