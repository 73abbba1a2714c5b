package model

import "time"

// User is a persisted credential record. PasswordHash holds the hasher's
// output and never leaves the process.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the subset of a User that is returned to clients.
type PublicUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (u User) Public() PublicUser {
	return PublicUser{Name: u.Name, Username: u.Username}
}
