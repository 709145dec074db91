package models

import (
	"strings"
	"time"
)

// Role enum
type Role string

const (
	RolePublic    Role = "public"
	RoleNGO       Role = "ngo"
	RoleAdmin     Role = "admin"
	RoleAuthority Role = "authority"
)

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePublic:
		return RolePublic, true
	case RoleNGO:
		return RoleNGO, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleAuthority:
		return RoleAuthority, true
	}
	return "", false
}

// NormalizeRole falls back to RolePublic for unknown values.
func NormalizeRole(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RolePublic
}

// Privileged reports whether the role belongs to the authority side.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleAuthority
}

// Profile is the durable, role-tagged user document keyed by uid.
type Profile struct {
	UID        string    `bson:"_id" json:"uid"`
	Email      string    `bson:"email" json:"email"`
	Role       Role      `bson:"role" json:"role"`
	Name       string    `bson:"name" json:"name"`
	Surname    string    `bson:"surname" json:"surname"`
	State      string    `bson:"state" json:"state"`
	District   string    `bson:"district" json:"district"`
	PublicName string    `bson:"publicName" json:"publicName"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	Repaired   bool      `bson:"repaired,omitempty" json:"repaired,omitempty"`
	LocalMode  bool      `bson:"-" json:"localMode,omitempty"`
}

// ProfileUpdate is the self-service subset of a profile.
type ProfileUpdate struct {
	Name       string `json:"name"`
	District   string `json:"district"`
	PublicName string `json:"publicName"`
}

// Apply copies the self-service fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	p.Name = u.Name
	p.District = u.District
	p.PublicName = u.PublicName
}

// Principal is the acting identity of a request.
type Principal struct {
	Subject string
	Role    Role
}
