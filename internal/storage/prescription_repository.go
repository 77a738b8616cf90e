package storage

import (
	"context"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/libs/db"
	"github.com/google/uuid"
)

// PrescriptionRepository scopes every read and write to the authoring doctor,
// so a prescription owned by another doctor behaves like a missing row.
type PrescriptionRepository struct {
	pool *db.Pool
}

func NewPrescriptionRepository(pool *db.Pool) *PrescriptionRepository {
	return &PrescriptionRepository{pool: pool}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *model.Prescription) (model.Prescription, error) {
	p.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO prescriptions (id, doctor_id, patient_id, medication, dosage, frequency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.DoctorID, p.PatientID, p.Medication, p.Dosage, p.Frequency).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Prescription{}, err
	}
	return *p, nil
}

func (r *PrescriptionRepository) ListByDoctor(ctx context.Context, doctorID string) ([]model.Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, medication, dosage, frequency, created_at, updated_at
		FROM prescriptions
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Prescription
	for rows.Next() {
		var p model.Prescription
		if err := rows.Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.Medication, &p.Dosage, &p.Frequency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PrescriptionRepository) Update(ctx context.Context, doctorID, id, medication, dosage, frequency string) (model.Prescription, error) {
	var p model.Prescription
	err := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET medication = $3,
			dosage = $4,
			frequency = $5,
			updated_at = now()
		WHERE id = $1 AND doctor_id = $2
		RETURNING id, doctor_id, patient_id, medication, dosage, frequency, created_at, updated_at
	`, id, doctorID, medication, dosage, frequency).
		Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.Medication, &p.Dosage, &p.Frequency, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Prescription{}, ErrNotFound
		}
		return model.Prescription{}, err
	}
	return p, nil
}

func (r *PrescriptionRepository) Delete(ctx context.Context, doctorID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM prescriptions
		WHERE id = $1 AND doctor_id = $2
	`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
