// Package passcode hashes and verifies bundle passcodes with Argon2id.
// Plaintext codes exist only in the create request on their way to the
// out-of-band notifier; storage sees hash and salt.
package passcode

import (
	"crypto/rand"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// Normalize trims surrounding whitespace and case-folds the code so that
// "Alpha42 " and "alpha42" verify against the same hash.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Hash returns the Argon2id hash of the normalized code and the random
// salt used.
func Hash(code string) (hash, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, err
	}
	hash = argon2.IDKey([]byte(Normalize(code)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hash, salt, nil
}

// Verify checks a supplied code against the stored hash in constant time.
func Verify(code string, salt, expected []byte) bool {
	if len(salt) == 0 || len(expected) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(Normalize(code)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
