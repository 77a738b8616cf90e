package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSlotTaken reports a unique-constraint violation on
// appointments (doctor_id, appt_date, time_slot): the slot was claimed by a
// concurrent booking between the caller's availability read and this write.
var ErrSlotTaken = errors.New("slot already booked")

// ErrDuplicate reports a unique-constraint violation outside the booking
// path, e.g. an email address already registered.
var ErrDuplicate = errors.New("record already exists")

// ErrNotFound reports a missing row, including rows hidden from the caller by
// ownership scoping.
var ErrNotFound = errors.New("record not found")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
