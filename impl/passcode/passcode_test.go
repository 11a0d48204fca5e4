package passcode

import (
	"bytes"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Alpha42", "alpha42"},
		{"  alpha42  ", "alpha42"},
		{"\tALPHA42\n", "alpha42"},
		{"alpha42", "alpha42"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashVerify(t *testing.T) {
	t.Parallel()

	hash, salt, err := Hash("Alpha42")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if len(hash) == 0 || len(salt) == 0 {
		t.Fatal("empty hash or salt")
	}

	// case and whitespace variants of the same code verify
	for _, code := range []string{"Alpha42", "alpha42", " ALPHA42 "} {
		if !Verify(code, salt, hash) {
			t.Fatalf("Verify(%q) = false", code)
		}
	}
	if Verify("alpha43", salt, hash) {
		t.Fatal("wrong code accepted")
	}
	if Verify("", salt, hash) {
		t.Fatal("empty code accepted")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	t.Parallel()

	h1, s1, err := Hash("same-code")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, s2, err := Hash("same-code")
	if err != nil {
		t.Fatalf("Hash(2): %v", err)
	}
	if bytes.Equal(s1, s2) {
		t.Fatal("two hashes share a salt")
	}
	if bytes.Equal(h1, h2) {
		t.Fatal("identical digests despite distinct salts")
	}
}

func TestVerify_MissingMaterialFailsClosed(t *testing.T) {
	t.Parallel()

	hash, salt, _ := Hash("code")
	if Verify("code", nil, hash) {
		t.Fatal("verified without salt")
	}
	if Verify("code", salt, nil) {
		t.Fatal("verified without stored hash")
	}
}
