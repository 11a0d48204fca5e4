package entity

import (
	"net/http"
	"time"

	"qrshare/lib/validate"
)

// Role controls what a user may do with bundles they did not create.
type Role string

const (
	RoleAdmin   Role = "admin"   // full access within the organization
	RoleManager Role = "manager" // may approve bundles in the same org
	RoleMember  Role = "member"  // may manage only own bundles
)

// Relation describes how a user stands to a particular bundle.
type Relation string

const (
	RelationCreator Relation = "creator"
	RelationSameOrg Relation = "same_org"
	RelationOther   Relation = "other"
)

// CapabilitySet is the outcome of the permission policy for one
// (role, relation) pair, computed once per operation.
type CapabilitySet struct {
	Read           bool
	Update         bool
	Delete         bool
	Approve        bool
	RotatePasscode bool
}

// Capabilities is the single permission-policy function. All mutation
// paths consult it instead of branching on role strings ad hoc.
func Capabilities(role Role, rel Relation) CapabilitySet {
	switch {
	case rel == RelationCreator:
		return CapabilitySet{Read: true, Update: true, Delete: true, RotatePasscode: true}
	case role == RoleAdmin && rel == RelationSameOrg:
		return CapabilitySet{Read: true, Update: true, Delete: true, Approve: true, RotatePasscode: true}
	case role == RoleManager && rel == RelationSameOrg:
		return CapabilitySet{Read: true, Approve: true}
	default:
		return CapabilitySet{}
	}
}

// User is an API user authenticated by token. TelegramId, when set, is
// the chat used for out-of-band passcode and approval notifications.
type User struct {
	Username     string    `json:"username" bson:"username" validate:"required"`
	Name         string    `json:"name" bson:"name" validate:"omitempty"`
	Email        string    `json:"email" bson:"email" validate:"omitempty"`
	Token        string    `json:"token" bson:"token" validate:"required,min=1"`
	Role         Role      `json:"role" bson:"role" validate:"omitempty,oneof=admin manager member"`
	OrgId        string    `json:"org_id" bson:"org_id"`
	TelegramId   int64     `json:"telegram_id,omitempty" bson:"telegram_id,omitempty"`
	RegisteredAt time.Time `json:"registered_at" bson:"registered_at"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RelationTo computes the user's relation to a bundle for the policy.
func (u *User) RelationTo(b *Bundle) Relation {
	if b.CreatorId == u.Username {
		return RelationCreator
	}
	if b.OrgId != "" && b.OrgId == u.OrgId {
		return RelationSameOrg
	}
	return RelationOther
}
