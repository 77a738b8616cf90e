package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/internal/storage"
)

type prescriptionView struct {
	ID         string `json:"id"`
	DoctorID   string `json:"doctor_id"`
	PatientID  string `json:"patient_id"`
	Medication string `json:"medication"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func viewPrescription(p model.Prescription) prescriptionView {
	return prescriptionView{
		ID:         p.ID,
		DoctorID:   p.DoctorID,
		PatientID:  p.PatientID,
		Medication: p.Medication,
		Dosage:     p.Dosage,
		Frequency:  p.Frequency,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Prescriptions handles the collection route: GET lists the caller's
// prescriptions, POST creates one.
func (h *DoctorHandler) Prescriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPrescriptions(w, r)
	case http.MethodPost:
		h.createPrescription(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// PrescriptionByID handles /prescriptions/{id}: PUT updates, DELETE removes.
// Both are scoped to the calling doctor; someone else's prescription is a 404.
func (h *DoctorHandler) PrescriptionByID(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, "prescription not found")
			return
		}
		switch r.Method {
		case http.MethodPut:
			h.updatePrescription(w, r, id)
		case http.MethodDelete:
			h.deletePrescription(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func (h *DoctorHandler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	prescriptions, err := h.prescriptions.ListByDoctor(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("prescription list failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	out := make([]prescriptionView, 0, len(prescriptions))
	for _, p := range prescriptions {
		out = append(out, viewPrescription(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type createPrescriptionRequest struct {
	PatientID  string `json:"patient_id"`
	Medication string `json:"medication"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
}

func (h *DoctorHandler) createPrescription(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	var req createPrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.Medication = strings.TrimSpace(req.Medication)
	if req.PatientID == "" || req.Medication == "" {
		writeError(w, http.StatusBadRequest, "patient_id and medication are required")
		return
	}

	created, err := h.prescriptions.Create(r.Context(), &model.Prescription{
		DoctorID:   identity.ID,
		PatientID:  req.PatientID,
		Medication: req.Medication,
		Dosage:     strings.TrimSpace(req.Dosage),
		Frequency:  strings.TrimSpace(req.Frequency),
	})
	if err != nil {
		h.logger.Error("prescription insert failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "Medication prescribed successfully",
		"prescription": viewPrescription(created),
	})
}

type updatePrescriptionRequest struct {
	Medication string `json:"medication"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
}

func (h *DoctorHandler) updatePrescription(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	var req updatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Medication = strings.TrimSpace(req.Medication)
	if req.Medication == "" {
		writeError(w, http.StatusBadRequest, "medication is required")
		return
	}

	updated, err := h.prescriptions.Update(r.Context(), identity.ID, id,
		req.Medication, strings.TrimSpace(req.Dosage), strings.TrimSpace(req.Frequency))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prescription not found")
			return
		}
		h.logger.Error("prescription update failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, viewPrescription(updated))
}

func (h *DoctorHandler) deletePrescription(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	if err := h.prescriptions.Delete(r.Context(), identity.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prescription not found")
			return
		}
		h.logger.Error("prescription delete failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Prescription deleted successfully"})
}
