package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/careloop/hms/internal/availability"
	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/internal/outbox"
	"github.com/careloop/hms/internal/storage"
)

// fakeLedger enforces the same (doctor, date, time) uniqueness the database
// constraint provides, so conflict behavior can be tested hermetically.
type fakeLedger struct {
	mu     sync.Mutex
	booked map[string]model.Appointment
	events []outbox.Event
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{booked: map[string]model.Appointment{}}
}

func slotKey(doctorID string, date time.Time, timeSlot string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date.Format("2006-01-02"), timeSlot)
}

func (f *fakeLedger) ListBookedTimes(_ context.Context, doctorID string, date time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var times []string
	for _, a := range f.booked {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			times = append(times, a.TimeSlot)
		}
	}
	return times, nil
}

func (f *fakeLedger) Schedule(_ context.Context, appt *model.Appointment, evt outbox.Event) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := slotKey(appt.DoctorID, appt.Date, appt.TimeSlot)
	if _, taken := f.booked[key]; taken {
		return model.Appointment{}, storage.ErrSlotTaken
	}
	appt.CreatedAt = time.Now().UTC()
	f.booked[key] = *appt
	f.events = append(f.events, evt)
	return *appt, nil
}

func (f *fakeLedger) PatientsWithAppointments(context.Context, string) ([]model.User, error) {
	return nil, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.booked)
}

type fakePatients struct {
	users map[string]model.User
}

func (f *fakePatients) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, storage.ErrNotFound
	}
	return u, nil
}

type fakeDoctors struct{}

func (fakeDoctors) GetByID(context.Context, string) (model.Doctor, error) {
	return model.Doctor{}, storage.ErrNotFound
}
func (fakeDoctors) UpdateProfile(_ context.Context, d model.Doctor) (model.Doctor, error) {
	return d, nil
}
func (fakeDoctors) ListPublic(context.Context) ([]model.Doctor, error) { return nil, nil }

type fakePrescriptions struct{}

func (fakePrescriptions) Create(_ context.Context, p *model.Prescription) (model.Prescription, error) {
	return *p, nil
}
func (fakePrescriptions) ListByDoctor(context.Context, string) ([]model.Prescription, error) {
	return nil, nil
}
func (fakePrescriptions) Update(context.Context, string, string, string, string, string) (model.Prescription, error) {
	return model.Prescription{}, storage.ErrNotFound
}
func (fakePrescriptions) Delete(context.Context, string, string) error {
	return storage.ErrNotFound
}

func newTestHandler(ledger *fakeLedger, patients *fakePatients) *DoctorHandler {
	if patients == nil {
		patients = &fakePatients{users: map[string]model.User{
			"p1": {ID: "p1", Email: "p1@hospital.test", Role: model.RolePatient},
		}}
	}
	return NewDoctorHandler(
		ledger,
		fakeDoctors{},
		patients,
		fakePrescriptions{},
		availability.NewCatalog(availability.DefaultSlots),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func asDoctor(r *http.Request, doctorID string) *http.Request {
	identity := Identity{ID: doctorID, Email: doctorID + "@hospital.test", Role: model.RoleDoctor}
	return r.WithContext(contextWithIdentity(r.Context(), identity))
}

func TestAvailableSlots_EmptyDay(t *testing.T) {
	h := newTestHandler(newFakeLedger(), nil)

	req := asDoctor(httptest.NewRequest(http.MethodGet, "/api/v1/doctor/available-slots?date=2024-05-15", nil), "doc-1")
	rw := httptest.NewRecorder()
	h.AvailableSlots(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var slots []string
	if err := json.Unmarshal(rw.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	want := []string{"9:00 AM", "10:00 AM", "11:00 AM", "2:00 PM", "3:00 PM", "4:00 PM"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d: expected %q, got %q", i, want[i], slots[i])
		}
	}
}

func TestAvailableSlots_BookedSlotExcluded(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)

	book := asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment",
		strings.NewReader(`{"patient_id":"p1","date":"2024-05-15","time":"10:00 AM"}`)), "doc-1")
	rwBook := httptest.NewRecorder()
	h.ScheduleAppointment(rwBook, book)
	if rwBook.Code != http.StatusCreated {
		t.Fatalf("booking should succeed, got %d: %s", rwBook.Code, rwBook.Body.String())
	}

	req := asDoctor(httptest.NewRequest(http.MethodGet, "/api/v1/doctor/available-slots?date=2024-05-15", nil), "doc-1")
	rw := httptest.NewRecorder()
	h.AvailableSlots(rw, req)

	var slots []string
	if err := json.Unmarshal(rw.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	want := []string{"9:00 AM", "11:00 AM", "2:00 PM", "3:00 PM", "4:00 PM"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d: expected %q, got %q", i, want[i], slots[i])
		}
	}
}

func TestAvailableSlots_MissingDate(t *testing.T) {
	h := newTestHandler(newFakeLedger(), nil)

	req := asDoctor(httptest.NewRequest(http.MethodGet, "/api/v1/doctor/available-slots", nil), "doc-1")
	rw := httptest.NewRecorder()
	h.AvailableSlots(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestScheduleAppointment_Conflict(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)
	body := `{"patient_id":"p1","date":"2024-05-15","time":"10:00 AM"}`

	first := httptest.NewRecorder()
	h.ScheduleAppointment(first, asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment", strings.NewReader(body)), "doc-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first booking should succeed, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ScheduleAppointment(second, asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment", strings.NewReader(body)), "doc-1"))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", second.Code, second.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error json: %v", err)
	}
	if resp.Error != "slot already booked" {
		t.Fatalf("expected slot-already-booked error, got %q", resp.Error)
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger must still hold exactly one appointment, got %d", ledger.count())
	}
}

func TestScheduleAppointment_InvalidSlot(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)

	req := asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment",
		strings.NewReader(`{"patient_id":"p1","date":"2024-05-15","time":"1:00 PM"}`)), "doc-1")
	rw := httptest.NewRecorder()
	h.ScheduleAppointment(rw, req)

	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rw.Code, rw.Body.String())
	}
	if ledger.count() != 0 {
		t.Fatalf("nothing may be persisted for an invalid slot, got %d rows", ledger.count())
	}
}

func TestScheduleAppointment_DoctorFromIdentityNotBody(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)

	// A doctor_id in the body must be ignored; the identity wins.
	req := asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment",
		strings.NewReader(`{"doctor_id":"doc-forged","patient_id":"p1","date":"2024-05-15","time":"9:00 AM"}`)), "doc-1")
	rw := httptest.NewRecorder()
	h.ScheduleAppointment(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp scheduleResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if resp.Appointment.DoctorID != "doc-1" {
		t.Fatalf("expected doctor_id from identity, got %q", resp.Appointment.DoctorID)
	}
	if resp.Appointment.ID == "" {
		t.Fatal("expected an assigned appointment id")
	}
}

func TestScheduleAppointment_UnknownPatient(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, &fakePatients{users: map[string]model.User{}})

	req := asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment",
		strings.NewReader(`{"patient_id":"ghost","date":"2024-05-15","time":"9:00 AM"}`)), "doc-1")
	rw := httptest.NewRecorder()
	h.ScheduleAppointment(rw, req)

	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
	if ledger.count() != 0 {
		t.Fatalf("nothing may be persisted for an unknown patient, got %d rows", ledger.count())
	}
}

func TestScheduleAppointment_ConcurrentSameSlot(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)
	body := `{"patient_id":"p1","date":"2024-05-15","time":"3:00 PM"}`

	const attempts = 8
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw := httptest.NewRecorder()
			h.ScheduleAppointment(rw, asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment", strings.NewReader(body)), "doc-1"))
			codes <- rw.Code
		}()
	}
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Fatalf("exactly one concurrent booking may win, got %d", created)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger must hold exactly one appointment, got %d", ledger.count())
	}
}

func TestScheduleAppointment_EmitsOutboxEvent(t *testing.T) {
	ledger := newFakeLedger()
	h := newTestHandler(ledger, nil)

	req := asDoctor(httptest.NewRequest(http.MethodPost, "/api/v1/doctor/schedule-appointment",
		strings.NewReader(`{"patient_id":"p1","date":"2024-05-15","time":"2:00 PM","reason":"follow-up"}`)), "doc-1")
	rw := httptest.NewRecorder()
	h.ScheduleAppointment(rw, req)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}

	if len(ledger.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(ledger.events))
	}
	evt := ledger.events[0]
	if evt.EventType != outbox.EventAppointmentScheduled {
		t.Fatalf("unexpected event type %q", evt.EventType)
	}
	var payload struct {
		PatientEmail string `json:"patient_email"`
		TimeSlot     string `json:"time_slot"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("invalid event payload: %v", err)
	}
	if payload.PatientEmail != "p1@hospital.test" || payload.TimeSlot != "2:00 PM" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
