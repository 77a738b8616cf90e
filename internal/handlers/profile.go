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

// doctorProfileView deliberately has no password field; the hash never
// leaves the storage layer in any response shape.
type doctorProfileView struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number"`
	PhoneNumber   string `json:"phone_number"`
	UpdatedAt     string `json:"updated_at"`
}

func viewDoctorProfile(d model.Doctor) doctorProfileView {
	return doctorProfileView{
		ID:            d.ID,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Specialty:     d.Specialty,
		LicenseNumber: d.LicenseNumber,
		PhoneNumber:   d.PhoneNumber,
		UpdatedAt:     d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Profile serves the calling doctor's own record: GET reads it, PUT replaces
// the editable fields.
func (h *DoctorHandler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r)
	case http.MethodPut:
		h.updateProfile(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *DoctorHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	doctor, err := h.doctors.GetByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		h.logger.Error("profile load failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, viewDoctorProfile(doctor))
}

type updateProfileRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number"`
	PhoneNumber   string `json:"phone_number"`
}

func (h *DoctorHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "first_name, last_name and email are required")
		return
	}

	updated, err := h.doctors.UpdateProfile(r.Context(), model.Doctor{
		ID:            identity.ID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Specialty:     strings.TrimSpace(req.Specialty),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		PhoneNumber:   strings.TrimSpace(req.PhoneNumber),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		h.logger.Error("profile update failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, viewDoctorProfile(updated))
}
