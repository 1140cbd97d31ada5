package utils

import "golang.org/x/crypto/bcrypt"

// PasswordHasher is the salted one-way hashing collaborator.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Bcrypt hashes passwords with a fixed cost.
type Bcrypt struct{ Cost int }

// Hash returns a bcrypt hash using the configured cost.
func (b Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify safely compares a bcrypt hash and a plain password.
func (Bcrypt) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
