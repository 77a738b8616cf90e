package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/careloop/hms/internal/availability"
	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/internal/outbox"
	"github.com/careloop/hms/internal/storage"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// BookingStore is the ledger surface the doctor handlers need. The pgx
// implementation lives in internal/storage.
type BookingStore interface {
	ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error)
	Schedule(ctx context.Context, appt *model.Appointment, evt outbox.Event) (model.Appointment, error)
	PatientsWithAppointments(ctx context.Context, doctorID string) ([]model.User, error)
}

type DoctorStore interface {
	GetByID(ctx context.Context, doctorID string) (model.Doctor, error)
	UpdateProfile(ctx context.Context, d model.Doctor) (model.Doctor, error)
	ListPublic(ctx context.Context) ([]model.Doctor, error)
}

type PatientStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

type PrescriptionStore interface {
	Create(ctx context.Context, p *model.Prescription) (model.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]model.Prescription, error)
	Update(ctx context.Context, doctorID, id, medication, dosage, frequency string) (model.Prescription, error)
	Delete(ctx context.Context, doctorID, id string) error
}

type DoctorHandler struct {
	appointments  BookingStore
	doctors       DoctorStore
	patients      PatientStore
	prescriptions PrescriptionStore
	catalog       *availability.Catalog
	logger        *slog.Logger
}

func NewDoctorHandler(
	appointments BookingStore,
	doctors DoctorStore,
	patients PatientStore,
	prescriptions PrescriptionStore,
	catalog *availability.Catalog,
	logger *slog.Logger,
) *DoctorHandler {
	return &DoctorHandler{
		appointments:  appointments,
		doctors:       doctors,
		patients:      patients,
		prescriptions: prescriptions,
		catalog:       catalog,
		logger:        logger,
	}
}

type appointmentView struct {
	ID        string `json:"id"`
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func viewAppointment(a model.Appointment) appointmentView {
	return appointmentView{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date.Format(dateLayout),
		Time:      a.TimeSlot,
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// AvailableSlots returns the catalog slots still free for the calling doctor
// on the requested day, in catalog order. The patientId query parameter is
// accepted for front-end symmetry but availability is doctor-scoped only.
func (h *DoctorHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}

	booked, err := h.appointments.ListBookedTimes(r.Context(), identity.ID, date)
	if err != nil {
		h.logger.Error("booked times query failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, availability.FreeSlots(h.catalog, booked))
}

type scheduleRequest struct {
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
}

type scheduleResponse struct {
	Message     string          `json:"message"`
	Appointment appointmentView `json:"appointment"`
}

// ScheduleAppointment commits a booking for the calling doctor. The doctor id
// always comes from the verified identity, never the body. Slot uniqueness is
// re-checked at write time by the ledger's unique constraint, so two
// concurrent requests for the same slot cannot both succeed.
func (h *DoctorHandler) ScheduleAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)")
		return
	}
	if !h.catalog.Contains(req.Time) {
		writeError(w, http.StatusUnprocessableEntity, "invalid slot")
		return
	}

	patient, err := h.patients.GetByID(r.Context(), req.PatientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("patient lookup failed", "err", err, "patient_id", req.PatientID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	appt := &model.Appointment{
		ID:        uuid.NewString(),
		DoctorID:  identity.ID,
		PatientID: patient.ID,
		Date:      date,
		TimeSlot:  req.Time,
		Reason:    req.Reason,
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"patient_id":     appt.PatientID,
		"patient_email":  patient.Email,
		"date":           req.Date,
		"time_slot":      req.Time,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	created, err := h.appointments.Schedule(r.Context(), appt, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentScheduled,
		Payload:       payload,
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			writeError(w, http.StatusConflict, "slot already booked")
			return
		}
		h.logger.Error("appointment insert failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "failed to schedule appointment")
		return
	}

	writeJSON(w, http.StatusCreated, scheduleResponse{
		Message:     "Appointment scheduled successfully",
		Appointment: viewAppointment(created),
	})
}

type patientView struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// PatientsWithAppointments lists the distinct patients who have at least one
// appointment with the calling doctor.
func (h *DoctorHandler) PatientsWithAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	patients, err := h.appointments.PatientsWithAppointments(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("patients query failed", "err", err, "doctor_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	out := make([]patientView, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientView{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type directoryEntry struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
}

// Directory is the public doctor listing used by the booking front end.
func (h *DoctorHandler) Directory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doctors, err := h.doctors.ListPublic(r.Context())
	if err != nil {
		h.logger.Error("doctor directory query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	out := make([]directoryEntry, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, directoryEntry{
			ID:        d.ID,
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Specialty: d.Specialty,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
