package model

import "time"

// Prescription is a plain data record scoped to the doctor who authored it.
type Prescription struct {
	ID         string
	DoctorID   string
	PatientID  string
	Medication string
	Dosage     string
	Frequency  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
