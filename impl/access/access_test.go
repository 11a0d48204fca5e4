package access

import (
	"testing"
	"time"

	"qrshare/entity"
)

func bundleWith(mut func(b *entity.Bundle)) *entity.Bundle {
	b := &entity.Bundle{
		PublicId: "b-1",
		Title:    "report pack",
		Access:   entity.AccessControl{IsPublic: true},
		Approval: entity.Approval{Status: entity.ApprovalPublished},
	}
	if mut != nil {
		mut(b)
	}
	return b
}

func TestEvaluate_GateOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		mut  func(b *entity.Bundle)
		want Result
	}{
		{"open bundle", nil, Accessible},
		{
			"pending approval",
			func(b *entity.Bundle) {
				b.Approval = entity.Approval{Required: true, Status: entity.ApprovalPending}
			},
			PendingApproval,
		},
		{
			"rejected",
			func(b *entity.Bundle) {
				b.Approval = entity.Approval{Required: true, Status: entity.ApprovalRejected}
			},
			Rejected,
		},
		{
			// the approval gate must win even when the time window would
			// also fail; otherwise the response leaks window state
			"rejected hides expired window",
			func(b *entity.Bundle) {
				b.Approval = entity.Approval{Required: true, Status: entity.ApprovalRejected}
				b.Access.ExpiryDate = &past
			},
			Rejected,
		},
		{
			"approval required and granted",
			func(b *entity.Bundle) {
				b.Approval = entity.Approval{Required: true, Status: entity.ApprovalApproved}
			},
			Accessible,
		},
		{
			"not yet published",
			func(b *entity.Bundle) { b.Access.PublishDate = &future },
			NotYetPublished,
		},
		{
			"expired",
			func(b *entity.Bundle) { b.Access.ExpiryDate = &past },
			Expired,
		},
		{
			"publish gate before expiry gate",
			func(b *entity.Bundle) {
				b.Access.PublishDate = &future
				b.Access.ExpiryDate = &past
			},
			NotYetPublished,
		},
		{
			"quota exhausted",
			func(b *entity.Bundle) {
				b.Access.MaxViews = 3
				b.Access.CurrentViews = 3
			},
			QuotaExceeded,
		},
		{
			"quota open",
			func(b *entity.Bundle) {
				b.Access.MaxViews = 3
				b.Access.CurrentViews = 2
			},
			Accessible,
		},
		{
			"unlimited views ignores counter",
			func(b *entity.Bundle) { b.Access.CurrentViews = 1_000_000 },
			Accessible,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Evaluate(bundleWith(tt.mut), now); got != tt.want {
				t.Fatalf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

// The same bundle moves through its lifecycle purely as the clock and its
// fields change; nothing is persisted between evaluations.
func TestEvaluate_LifecycleScenario(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	publish := now.Add(time.Hour)
	b := bundleWith(func(b *entity.Bundle) {
		b.Access.PublishDate = &publish
	})

	if got := Evaluate(b, now); got != NotYetPublished {
		t.Fatalf("before publish: got %s", got)
	}
	if got := Evaluate(b, publish.Add(time.Minute)); got != Accessible {
		t.Fatalf("after publish: got %s", got)
	}

	expiry := now.Add(-time.Hour)
	b.Access.ExpiryDate = &expiry
	if got := Evaluate(b, publish.Add(time.Minute)); got != Expired {
		t.Fatalf("after expiry set: got %s", got)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := bundleWith(func(b *entity.Bundle) {
		b.Access.MaxViews = 5
		b.Access.CurrentViews = 4
	})
	first := Evaluate(b, now)
	for i := 0; i < 100; i++ {
		if got := Evaluate(b, now); got != first {
			t.Fatalf("evaluation %d diverged: %s != %s", i, got, first)
		}
	}
}
