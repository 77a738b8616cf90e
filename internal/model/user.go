package model

import "time"

// User covers the non-doctor identities: patients and the bootstrap admin.
// The role column partitions them.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
)
