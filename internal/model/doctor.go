package model

import "time"

type Doctor struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Specialty     string
	LicenseNumber string
	PhoneNumber   string
	PasswordHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
