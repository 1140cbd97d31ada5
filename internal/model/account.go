package model

import "time"

// Account represents an identity record as stored in the `accounts`
// table. Email is stored lower-cased and is unique across active and
// inactive rows; accounts are never hard-deleted, deactivation flips
// IsActive instead.
type Account struct {
	ID           uint64    // accounts.id
	RoleID       uint8     // accounts.role_id (references roles.id)
	Name         string    // accounts.name
	Email        string    // accounts.email
	PasswordHash string    // accounts.password_hash (bcrypt)
	DOB          time.Time // accounts.dob
	Address      string    // accounts.address
	IsActive     bool      // accounts.is_active
	IsVerified   bool      // accounts.is_verified, set only by email verification
	CreatedAt    time.Time // accounts.created_at
	UpdatedAt    time.Time // accounts.updated_at
}

// NewAccount is the candidate submitted for provisioning, before the store
// assigns an id and the password is hashed.
type NewAccount struct {
	Name     string
	Email    string
	Password string
	DOB      time.Time
	Address  string
}

// AccessClaims is the identity carried inside a signed access token. It is
// never persisted.
type AccessClaims struct {
	AccountID uint64
	Email     string
	RoleID    uint8
	Role      RoleName
	IssuedAt  time.Time
	ExpiresAt time.Time
}
