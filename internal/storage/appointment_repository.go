package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/internal/outbox"
	"github.com/careloop/hms/libs/db"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

// ListBookedTimes returns the time-slot labels already committed for the
// doctor on the given calendar day.
func (r *AppointmentRepository) ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return times, nil
}

// Schedule inserts the appointment and its outbox event in one transaction.
// The insert itself is the uniqueness check: a violation of the
// (doctor_id, appt_date, time_slot) constraint surfaces as ErrSlotTaken and
// leaves no rows behind.
func (r *AppointmentRepository) Schedule(ctx context.Context, appt *model.Appointment, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, appt_date, time_slot, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.TimeSlot, appt.Reason).Scan(&appt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Appointment{}, fmt.Errorf("appointment %s %s for doctor %s: %w",
				appt.Date.Format("2006-01-02"), appt.TimeSlot, appt.DoctorID, ErrSlotTaken)
		}
		return model.Appointment{}, err
	}

	evt.AggregateID = appt.ID
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return *appt, nil
}

// PatientsWithAppointments joins the ledger against the users table and
// returns the distinct patients the doctor has appointments with.
func (r *AppointmentRepository) PatientsWithAppointments(ctx context.Context, doctorID string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.id, u.first_name, u.last_name, u.email, u.role, u.created_at
		FROM users u
		JOIN appointments a ON a.patient_id = u.id
		WHERE a.doctor_id = $1 AND u.role = 'patient'
		ORDER BY u.last_name, u.first_name
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return patients, nil
}
