package models

import "time"

// User models a CineList account. Password hashes never leave the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword reports whether the account has finished setting a password.
// Invited accounts start without one.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
