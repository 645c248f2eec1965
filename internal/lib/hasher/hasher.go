package hasher

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is a one-way hash for passwords and one-time codes. Comparison is
// done by re-hashing the candidate, never by decoding the stored hash.
type Hasher struct {
	cost int
}

func New(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(value string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(value), h.cost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (h *Hasher) Verify(value, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(value)) == nil
}

// Digest returns the hex sha256 digest of value. Used for refresh tokens,
// which exceed bcrypt's 72-byte input limit.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// SecureCompare reports whether two equal-length secrets match without
// leaking the position of the first differing byte.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
