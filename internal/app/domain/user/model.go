package user

import "time"

// User is the minimal read projection of an identity owned by the external
// identity subsystem, plus the password hash needed for credential checks.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
