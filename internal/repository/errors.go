// Package repository holds the parameterized statements that read and
// write accounts, roles, refresh sessions and single-use tokens. Every
// repository is built over a database.Querier, so the same code runs on
// the pool or inside a caller's transaction.
//
// The sentinel values below let the service layer tell failure scenarios
// apart without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no usable row. For token
// lookups it deliberately covers "unknown", "inactive" and "expired".
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when the unique constraint on
// accounts.email rejects an insert.
var ErrEmailExists = errors.New("email already exists")
