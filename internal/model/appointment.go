package model

import "time"

// Appointment is one committed booking in the ledger. The pair of DoctorID,
// Date and TimeSlot is unique across the table; the database constraint is
// the authoritative double-booking check.
type Appointment struct {
	ID        string
	DoctorID  string
	PatientID string
	Date      time.Time // calendar day, no time component
	TimeSlot  string    // one of the slot catalog labels
	Reason    string
	CreatedAt time.Time
}
