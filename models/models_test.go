package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want IssueStatus
		ok   bool
	}{
		{"Submitted", StatusSubmitted, true},
		{"received by authority", StatusReceived, true},
		{"  WORK STARTED ", StatusWorkStarted, true},
		{"under construction", StatusUnderConstruction, true},
		{"completed", StatusCompleted, true},
		{"Rejected", StatusRejected, true},
		{"not started", StatusNotStarted, true},
		{"Resolved", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]Role{
		"public":    RolePublic,
		"NGO":       RoleNGO,
		"Admin":     RoleAdmin,
		"authority": RoleAuthority,
		"":          RolePublic,
		"superuser": RolePublic,
	}
	for in, want := range tests {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
	if !RoleAuthority.Privileged() || !RoleAdmin.Privileged() {
		t.Error("admin and authority should be privileged")
	}
	if RoleNGO.Privileged() || RolePublic.Privileged() {
		t.Error("ngo and public should not be privileged")
	}
}

func TestDisplayID(t *testing.T) {
	issue := Issue{IssueID: "1718000000000"}
	if got := issue.DisplayID(); got != "171800" {
		t.Errorf("DisplayID() = %q, want %q", got, "171800")
	}

	id := primitive.NewObjectID()
	issue = Issue{ID: id}
	if got := issue.DisplayID(); got != id.Hex()[:6] {
		t.Errorf("DisplayID() = %q, want %q", got, id.Hex()[:6])
	}
}

func TestStoreTimeTruncatesToMillis(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.FixedZone("IST", 19800))
	got := StoreTime(in)
	if got.Nanosecond() != 123000000 {
		t.Errorf("nanoseconds = %d, want 123000000", got.Nanosecond())
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestAccountPassword(t *testing.T) {
	a := Account{Password: "s3cret-pass"}
	if err := a.HashPassword(); err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if a.Password == "s3cret-pass" {
		t.Fatal("password was not hashed")
	}
	if !a.ComparePassword("s3cret-pass") {
		t.Error("expected matching password to compare true")
	}
	if a.ComparePassword("wrong") {
		t.Error("expected wrong password to compare false")
	}
}

func TestIssueUpdateEmpty(t *testing.T) {
	if !(IssueUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}
	remarks := ""
	if (IssueUpdate{AuthorityRemarks: &remarks}).Empty() {
		t.Error("update with an explicit empty remark is not empty")
	}
}
