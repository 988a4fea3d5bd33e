package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes plaintext with bcrypt at the given cost. A cost of
// zero selects bcrypt.DefaultCost.
func HashPassword(plain string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(plain), cost)
}

// ComparePassword compares plaintext to a hashed secret.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
