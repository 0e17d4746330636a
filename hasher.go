package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt operates on at most 72 bytes of input; anything longer is rejected
// rather than silently truncated.
const maxSecretBytes = 72

// Hasher is a bcrypt-backed SecretHasher with a configurable work factor.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside the
// algorithm's valid range fall back to the package default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultHasherCost()
	}
	return Hasher{cost: cost}
}

// Hash will generate a secret hash
func (h Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	if len(secret) > maxSecretBytes {
		return "", ErrSecretTooLong
	}

	cost := h.cost
	if cost == 0 {
		cost = defaultHasherCost()
	}

	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(out), err
}

// Verify reports whether the cleartext secret matches the stored hash. A
// malformed hash verifies false, it never errors out.
func (h Hasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// CompareSecretAndHash will validate the given cleartext secret matches the
// hashed secret, surfacing ErrInvalidCredentials on mismatch or on a hash
// bcrypt cannot parse.
func CompareSecretAndHash(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var _ SecretHasher = Hasher{}
