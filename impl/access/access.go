// Package access decides whether a bundle may currently be disclosed.
// The decision is recomputed on every request; no accessibility state is
// ever persisted.
package access

import (
	"time"

	"qrshare/entity"
)

type Result string

const (
	Accessible      Result = "accessible"
	NotYetPublished Result = "not_yet_published"
	Expired         Result = "expired"
	QuotaExceeded   Result = "quota_exceeded"
	PendingApproval Result = "pending_approval"
	Rejected        Result = "rejected"
)

func (r Result) Accessible() bool {
	return r == Accessible
}

// Evaluate runs the gate checks in a fixed order. The approval gate comes
// strictly before the time and quota gates: a rejected bundle must not
// leak whether it would otherwise be inside its time window.
func Evaluate(b *entity.Bundle, now time.Time) Result {
	if b.Approval.Required && !b.IsApproved() {
		if b.Approval.Status == entity.ApprovalRejected {
			return Rejected
		}
		return PendingApproval
	}
	if b.Access.PublishDate != nil && b.Access.PublishDate.After(now) {
		return NotYetPublished
	}
	if b.Access.ExpiryDate != nil && b.Access.ExpiryDate.Before(now) {
		return Expired
	}
	if b.Access.MaxViews > 0 && b.Access.CurrentViews >= b.Access.MaxViews {
		return QuotaExceeded
	}
	return Accessible
}
