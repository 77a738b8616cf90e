package storage

import (
	"context"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/libs/db"
)

type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) GetByID(ctx context.Context, doctorID string) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, specialty, license_number, phone_number, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Email,
		&d.Specialty,
		&d.LicenseNumber,
		&d.PhoneNumber,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return d, nil
}

// UpdateProfile writes the editable profile fields. The password hash is
// never touched here; credential changes go through a separate flow.
func (r *DoctorRepository) UpdateProfile(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET first_name = $2,
			last_name = $3,
			email = $4,
			specialty = $5,
			license_number = $6,
			phone_number = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, d.ID, d.FirstName, d.LastName, d.Email, d.Specialty, d.LicenseNumber, d.PhoneNumber).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return d, nil
}

// ListPublic returns the directory view of all doctors: name and specialty
// only, no contact or credential fields.
func (r *DoctorRepository) ListPublic(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, first_name, last_name, specialty
		FROM doctors
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialty); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return doctors, nil
}
