package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusSubmitted         IssueStatus = "Submitted"
	StatusReceived          IssueStatus = "Received by Authority"
	StatusWorkStarted       IssueStatus = "Work Started"
	StatusUnderConstruction IssueStatus = "Under Construction"
	StatusCompleted         IssueStatus = "Completed"
	StatusRejected          IssueStatus = "Rejected"
	// StatusNotStarted is a legacy value still accepted on update.
	StatusNotStarted IssueStatus = "Not Started"
)

// Statuses lists every accepted status in workflow order, terminal alternates last.
var Statuses = []IssueStatus{
	StatusSubmitted,
	StatusReceived,
	StatusWorkStarted,
	StatusUnderConstruction,
	StatusCompleted,
	StatusRejected,
	StatusNotStarted,
}

// ParseStatus matches s case-insensitively against the known statuses and
// returns the canonical spelling.
func ParseStatus(s string) (IssueStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// GPS holds the coordinates an issue is plotted at.
type GPS struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Timestamps are assigned by the service, never by the client.
type Timestamps struct {
	Created time.Time `bson:"created" json:"created"`
	Updated time.Time `bson:"updated" json:"updated"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssueID           string             `bson:"issueId" json:"issueId"`
	ReporterID        string             `bson:"reporterId" json:"reporterId"`
	Type              string             `bson:"type" json:"type"`
	Description       string             `bson:"description" json:"description"`
	District          string             `bson:"district" json:"district"`
	Feedback          string             `bson:"feedback" json:"feedback"`
	ImageURL          string             `bson:"imageUrl" json:"imageUrl"`
	GPS               GPS                `bson:"gps" json:"gps"`
	Status            IssueStatus        `bson:"status" json:"status"`
	AssignedAuthority string             `bson:"assignedAuthority" json:"assignedAuthority"`
	AuthorityRemarks  string             `bson:"authorityRemarks" json:"authorityRemarks"`
	Timestamps        Timestamps         `bson:"timestamps" json:"timestamps"`
}

// DisplayID is the short identifier shown in tables.
func (i Issue) DisplayID() string {
	id := i.IssueID
	if id == "" {
		id = i.ID.Hex()
	}
	if len(id) > 6 {
		return id[:6]
	}
	return id
}

// IssueUpdate carries the privileged, mutable subset of an issue. Nil fields
// are left untouched.
type IssueUpdate struct {
	AssignedAuthority *string      `json:"assignedAuthority,omitempty"`
	Status            *IssueStatus `json:"status,omitempty"`
	AuthorityRemarks  *string      `json:"authorityRemarks,omitempty"`
}

// Empty reports whether the update touches no field.
func (u IssueUpdate) Empty() bool {
	return u.AssignedAuthority == nil && u.Status == nil && u.AuthorityRemarks == nil
}

// StoreTime truncates t to the millisecond precision of BSON datetimes.
func StoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
