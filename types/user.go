package types

import "github.com/google/uuid"

// User is an account record as read from the user store.
// The auth service never writes it.
type User struct {
	// ID is the stable identifier carried in the token subject.
	ID uuid.UUID `json:"id" db:"id"`

	// Username is the unique login name, 1 to 40 characters.
	Username string `json:"username" db:"username"`

	// PasswordHash is the bcrypt digest of the user's password. The salt and
	// cost factor are embedded in the digest itself.
	// This field is never exposed in API responses.
	PasswordHash []byte `json:"-" db:"hashed_password"`
}
