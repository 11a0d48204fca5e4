// Package signer signs and verifies bundle public ids with keyed HMAC.
//
// The signature is a pure function of the public id and the signing key,
// so it is always recomputed and never stored-and-compared. Keys are
// versioned: the first key signs, every configured key verifies. Rotation
// procedure: prepend the new key, keep the old one in the window until all
// live bundles are re-signed, then drop it.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type Key struct {
	Version string
	Secret  string
}

type Signer struct {
	keys []Key
}

func New(keys []Key) (*Signer, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("signer: no keys configured")
	}
	for i, k := range keys {
		if k.Secret == "" {
			return nil, fmt.Errorf("signer: key %d (%s) has empty secret", i, k.Version)
		}
	}
	return &Signer{keys: keys}, nil
}

// Sign returns the hex HMAC-SHA256 of the public id under the newest key.
func (s *Signer) Sign(publicId string) string {
	return sign(s.keys[0].Secret, publicId)
}

// Verify recomputes the expected signature under every configured key and
// compares in constant time. A mismatched length or a stale key fails
// closed without revealing where the mismatch occurred: both sides are
// hashed before comparison, so timing is independent of the input.
func (s *Signer) Verify(publicId, supplied string) bool {
	suppliedDigest := sha256.Sum256([]byte(supplied))
	ok := false
	for _, k := range s.keys {
		expectedDigest := sha256.Sum256([]byte(sign(k.Secret, publicId)))
		if hmac.Equal(expectedDigest[:], suppliedDigest[:]) {
			ok = true
		}
	}
	return ok
}

// SignedURL builds the public QR payload for a bundle.
func (s *Signer) SignedURL(baseURL, publicId string) string {
	return fmt.Sprintf("%s/qr/view/%s?sig=%s", baseURL, publicId, s.Sign(publicId))
}

func sign(secret, publicId string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(publicId))
	return hex.EncodeToString(mac.Sum(nil))
}
