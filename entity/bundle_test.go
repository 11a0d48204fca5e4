package entity

import (
	"errors"
	"testing"
	"time"
)

func TestShareRequest_BindRejectsDuplicateDocuments(t *testing.T) {
	t.Parallel()

	req := &ShareRequest{
		Title:     "minutes",
		Documents: []string{"d1", "d2", "d1"},
	}
	err := req.Bind(nil)
	if err == nil {
		t.Fatal("expected duplicate document error")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("want ValidationError, got %T: %v", err, err)
	}
}

func TestShareRequest_BindValid(t *testing.T) {
	t.Parallel()

	req := &ShareRequest{
		Title:     "minutes",
		Documents: []string{"d1", "d2"},
	}
	if err := req.Bind(nil); err != nil {
		t.Fatalf("Bind: %v", err)
	}
}

func TestBundleUpdate_BindRejectsConflictingClear(t *testing.T) {
	t.Parallel()

	now := time.Now()
	upd := &BundleUpdate{ExpiryDate: &now, ClearExpiryDate: true}
	var validationErr *ValidationError
	if !errors.As(upd.Bind(nil), &validationErr) {
		t.Fatal("expected conflict error for expiry_date + clear_expiry_date")
	}

	upd = &BundleUpdate{PublishDate: &now, ClearPublishDate: true}
	if !errors.As(upd.Bind(nil), &validationErr) {
		t.Fatal("expected conflict error for publish_date + clear_publish_date")
	}

	if err := (&BundleUpdate{ClearExpiryDate: true}).Bind(nil); err != nil {
		t.Fatalf("Bind: %v", err)
	}
}

func TestShareRequest_IsDefaultShare(t *testing.T) {
	t.Parallel()

	now := time.Now()
	isPrivate := false

	tests := []struct {
		name string
		req  ShareRequest
		want bool
	}{
		{"bare request", ShareRequest{}, true},
		{"explicit public", ShareRequest{IsPublic: ptr(true)}, true},
		{"private", ShareRequest{IsPublic: &isPrivate}, false},
		{"passcode", ShareRequest{Passcode: "x1234"}, false},
		{"expiry", ShareRequest{ExpiryDate: &now}, false},
		{"embargo", ShareRequest{PublishDate: &now}, false},
		{"view quota", ShareRequest{MaxViews: 5}, false},
		{"approval", ShareRequest{RequireApproval: true}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.req.IsDefaultShare(); got != tt.want {
				t.Fatalf("IsDefaultShare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBundle_IsApproved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		approval Approval
		want     bool
	}{
		{"not required", Approval{Status: ApprovalPending}, true},
		{"required pending", Approval{Required: true, Status: ApprovalPending}, false},
		{"required rejected", Approval{Required: true, Status: ApprovalRejected}, false},
		{"required approved", Approval{Required: true, Status: ApprovalApproved}, true},
		{"required published", Approval{Required: true, Status: ApprovalPublished}, true},
	}
	for _, tt := range tests {
		b := &Bundle{Approval: tt.approval}
		if got := b.IsApproved(); got != tt.want {
			t.Fatalf("%s: IsApproved() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func ptr(b bool) *bool { return &b }
