package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("23505 must be recognized as a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Fatal("plain errors are not unique violations")
	}

	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(wrapped) {
		t.Fatal("wrapped pg errors must still be recognized")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrSlotTaken, ErrDuplicate) || errors.Is(ErrSlotTaken, ErrNotFound) {
		t.Fatal("sentinels must not alias each other")
	}
	wrapped := fmt.Errorf("appointment 2024-05-15 10:00 AM: %w", ErrSlotTaken)
	if !errors.Is(wrapped, ErrSlotTaken) {
		t.Fatal("wrapped ErrSlotTaken must satisfy errors.Is")
	}
}
