package entity

import (
	"net/http"
	"time"

	"qrshare/lib/validate"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalPublished ApprovalStatus = "published"
)

// AccessControl gates disclosure of a bundle. CurrentViews is the only
// field mutated outside the creator/admin path; it changes solely through
// the storage-level conditional increment.
type AccessControl struct {
	IsPublic       bool       `json:"is_public" bson:"is_public"`
	HasPasscode    bool       `json:"has_passcode" bson:"has_passcode"`
	PasscodeHash   []byte     `json:"-" bson:"passcode_hash,omitempty"`
	PasscodeSalt   []byte     `json:"-" bson:"passcode_salt,omitempty"`
	ShowLockStatus bool       `json:"show_lock_status" bson:"show_lock_status"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	PublishDate    *time.Time `json:"publish_date,omitempty" bson:"publish_date,omitempty"`
	MaxViews       int64      `json:"max_views" bson:"max_views"`
	CurrentViews   int64      `json:"current_views" bson:"current_views"`
}

type Approval struct {
	Required     bool           `json:"required" bson:"required"`
	Status       ApprovalStatus `json:"status" bson:"status"`
	Approver     string         `json:"approver,omitempty" bson:"approver,omitempty"`
	ApprovalDate *time.Time     `json:"approval_date,omitempty" bson:"approval_date,omitempty"`
	Notes        string         `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Bundle is a named, access-controlled collection of documents exposed
// through a single QR code. PublicId is the only identifier that ever
// leaves the service; it is immutable once assigned.
type Bundle struct {
	PublicId      string        `json:"public_id" bson:"public_id"`
	Title         string        `json:"title" bson:"title"`
	Description   string        `json:"description,omitempty" bson:"description,omitempty"`
	CustomMessage string        `json:"custom_message,omitempty" bson:"custom_message,omitempty"`
	CreatorId     string        `json:"creator_id" bson:"creator_id"`
	OrgId         string        `json:"org_id,omitempty" bson:"org_id,omitempty"`
	DepartmentId  string        `json:"department_id,omitempty" bson:"department_id,omitempty"`
	Documents     []string      `json:"documents" bson:"documents"`
	Access        AccessControl `json:"access" bson:"access"`
	Approval      Approval      `json:"approval" bson:"approval"`
	QRImageURL    string        `json:"qr_image_url,omitempty" bson:"qr_image_url,omitempty"`
	Signature     string        `json:"-" bson:"signature"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

// IsApproved reports whether the approval gate lets the bundle through.
// A bundle that never required approval passes trivially.
func (b *Bundle) IsApproved() bool {
	if !b.Approval.Required {
		return true
	}
	return b.Approval.Status == ApprovalApproved || b.Approval.Status == ApprovalPublished
}

// ShareRequest is the create-bundle request body.
type ShareRequest struct {
	Title           string     `json:"title" validate:"required,min=1,max=200"`
	Description     string     `json:"description" validate:"omitempty,max=2000"`
	CustomMessage   string     `json:"custom_message" validate:"omitempty,max=2000"`
	Documents       []string   `json:"documents" validate:"required,min=1,dive,required"`
	IsPublic        *bool      `json:"is_public" validate:"omitempty"`
	Passcode        string     `json:"passcode" validate:"omitempty,min=4,max=64"`
	ShowLockStatus  bool       `json:"show_lock_status"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	PublishDate     *time.Time `json:"publish_date"`
	MaxViews        int64      `json:"max_views" validate:"omitempty,min=0"`
	RequireApproval bool       `json:"require_approval"`
}

func (s *ShareRequest) Bind(_ *http.Request) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if dup := firstDuplicate(s.Documents); dup != "" {
		return NewValidationError("duplicate document in bundle: " + dup)
	}
	return nil
}

// Public reports the requested visibility; unset defaults to public,
// matching the default-parameter share flow.
func (s *ShareRequest) Public() bool {
	if s.IsPublic == nil {
		return true
	}
	return *s.IsPublic
}

// IsDefaultShare reports whether the request matches the reuse key:
// public, no passcode, no time window, unlimited views, no approval step.
// Only default shares are eligible for bundle reuse.
func (s *ShareRequest) IsDefaultShare() bool {
	return s.Public() &&
		s.Passcode == "" &&
		s.ExpiryDate == nil &&
		s.PublishDate == nil &&
		s.MaxViews == 0 &&
		!s.RequireApproval
}

// BundleUpdate carries the creator/admin-mutable metadata fields.
// Nil pointers leave the stored value untouched; the clear flags reset
// the corresponding date back to null, since a nil pointer cannot say
// "remove" over JSON.
type BundleUpdate struct {
	Title            *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string    `json:"description" validate:"omitempty,max=2000"`
	CustomMessage    *string    `json:"custom_message" validate:"omitempty,max=2000"`
	ShowLockStatus   *bool      `json:"show_lock_status"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	PublishDate      *time.Time `json:"publish_date"`
	ClearExpiryDate  bool       `json:"clear_expiry_date"`
	ClearPublishDate bool       `json:"clear_publish_date"`
	MaxViews         *int64     `json:"max_views" validate:"omitempty,min=0"`
}

func (u *BundleUpdate) Bind(_ *http.Request) error {
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.ExpiryDate != nil && u.ClearExpiryDate {
		return NewValidationError("expiry_date and clear_expiry_date are mutually exclusive")
	}
	if u.PublishDate != nil && u.ClearPublishDate {
		return NewValidationError("publish_date and clear_publish_date are mutually exclusive")
	}
	return nil
}

// ShareResult is what the create flow returns: the bundle plus whether an
// existing one was reused instead of minting a new QR artifact.
type ShareResult struct {
	Bundle *Bundle `json:"bundle"`
	Reused bool    `json:"reused"`
}

// LockedView is the minimal payload disclosed for a passcode-protected
// bundle before the code is supplied. It never carries documents.
type LockedView struct {
	PublicId       string `json:"public_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	HasPasscode    bool   `json:"has_passcode"`
	ShowLockStatus bool   `json:"show_lock_status,omitempty"`
}

// ViewOutcome is the scan flow result: either the minimal locked summary
// or the full payload, never both.
type ViewOutcome struct {
	Locked *LockedView `json:"locked,omitempty"`
	Full   *BundleView `json:"bundle,omitempty"`
}

// PasscodeRequest is the verify-passcode request body.
type PasscodeRequest struct {
	Passcode string `json:"passcode" validate:"required,min=1,max=64"`
}

func (p *PasscodeRequest) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// ApprovalRequest is the approve-bundle request body.
type ApprovalRequest struct {
	Status ApprovalStatus `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string         `json:"notes" validate:"omitempty,max=2000"`
}

func (a *ApprovalRequest) Bind(_ *http.Request) error {
	return validate.Struct(a)
}

// RotatePasscodeRequest sets a new passcode on a bundle.
type RotatePasscodeRequest struct {
	Passcode string `json:"passcode" validate:"required,min=4,max=64"`
}

func (p *RotatePasscodeRequest) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// BundleView is the full disclosure payload served after every gate passed.
type BundleView struct {
	PublicId      string      `json:"public_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	CustomMessage string      `json:"custom_message,omitempty"`
	Documents     []*Document `json:"documents"`
	ViewCount     int64       `json:"view_count"`
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
