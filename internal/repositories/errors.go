package repositories

import "errors"

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrConflict indicates the username is already registered.
	ErrConflict = errors.New("username already taken")
)
