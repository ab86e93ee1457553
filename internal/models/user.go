package models

import "time"

// User is a registered participant, identified by a five-digit code.
type User struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	PasscodeHash string    `json:"-"` // never leaves the server
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the minimal user view returned to clients.
type Profile struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (u *User) Profile() Profile {
	return Profile{Code: u.Code, Name: u.Name}
}
