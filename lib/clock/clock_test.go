package clock

import (
	"testing"
	"time"
)

func TestNowRoundTrip(t *testing.T) {
	t.Parallel()

	s := Now()
	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(Now()): %v", err)
	}
	if d := time.Since(parsed); d < 0 || d > time.Minute {
		t.Fatalf("parsed timestamp is off by %v", d)
	}

	if _, err = Parse("not-a-time"); err == nil {
		t.Fatal("expected parse error")
	}
}
