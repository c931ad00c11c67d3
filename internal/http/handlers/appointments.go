package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const maxRequestBody = 1 << 16

// SlotLister lists open slots for one doctor on one date.
type SlotLister interface {
	AvailableSlots(ctx context.Context, doctorID int64, date time.Time) ([]string, error)
}

// EventPublisher enqueues pipeline events.
type EventPublisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

// AppointmentsHandler exposes slot lookup and queues match/confirm requests
// for the booking consumers.
type AppointmentsHandler struct {
	slots     SlotLister
	publisher EventPublisher
	holds     reservation.Cache
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewAppointmentsHandler(slots SlotLister, publisher EventPublisher, holds reservation.Cache, m *metrics.PipelineMetrics, logger *logging.Logger) *AppointmentsHandler {
	if slots == nil {
		panic("handlers: slot lister required")
	}
	if publisher == nil {
		panic("handlers: publisher required")
	}
	if holds == nil {
		panic("handlers: reservation cache required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{
		slots:     slots,
		publisher: publisher,
		holds:     holds,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SlotsResponse lists open HH:MM start times.
type SlotsResponse struct {
	DoctorID       int64    `json:"doctor_id"`
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
}

// GetSlots handles GET /appointments/slots?doctor_id=&date=YYYY-MM-DD.
func (h *AppointmentsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("doctor_id")), 10, 64)
	if err != nil || doctorID <= 0 {
		jsonError(w, "doctor_id must be a positive integer", http.StatusBadRequest)
		return
	}
	dateParam := strings.TrimSpace(r.URL.Query().Get("date"))
	date, err := schedule.ParseDate(dateParam)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.slots.AvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("failed to list available slots", "error", err, "doctor_id", doctorID, "date", dateParam)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{DoctorID: doctorID, Date: dateParam, AvailableSlots: slots})
}

// AcceptedResponse acknowledges a queued request.
type AcceptedResponse struct {
	ComplaintID string `json:"complaint_id"`
	Status      string `json:"status"`
}

// RequestMatch handles POST /appointments/match.
func (h *AppointmentsHandler) RequestMatch(w http.ResponseWriter, r *http.Request) {
	var req events.MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.ComplaintID = strings.TrimSpace(req.ComplaintID)
	if req.Specialty == "" {
		jsonError(w, "specialty is required", http.StatusBadRequest)
		return
	}
	if req.ComplaintID == "" {
		req.ComplaintID = uuid.NewString()
	}
	h.enqueue(w, r, events.TopicMatchRequests, req.ComplaintID, req)
}

// Confirm handles POST /appointments/confirm.
func (h *AppointmentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req events.Confirmation
	if !decodeBody(w, r, &req) {
		return
	}
	req.ComplaintID = strings.TrimSpace(req.ComplaintID)
	if req.ComplaintID == "" {
		jsonError(w, "complaint_id is required", http.StatusBadRequest)
		return
	}
	if req.Confirmed && req.PatientID <= 0 {
		jsonError(w, "patient_id is required to confirm", http.StatusBadRequest)
		return
	}
	h.enqueue(w, r, events.TopicConfirmations, req.ComplaintID, req)
}

func (h *AppointmentsHandler) enqueue(w http.ResponseWriter, r *http.Request, topic events.Topic, complaintID string, payload any) {
	if err := h.publisher.Publish(r.Context(), topic, payload); err != nil {
		h.logger.WithComplaint(complaintID).Error("failed to enqueue request", "error", err, "topic", string(topic))
		jsonError(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	h.metrics.ObserveEnqueued(string(topic))
	writeJSON(w, http.StatusAccepted, AcceptedResponse{ComplaintID: complaintID, Status: "queued"})
}

// ReservationResponse is the admin view of a live hold.
type ReservationResponse struct {
	reservation.Reservation
	ExpiresInSeconds int64 `json:"expires_in_seconds"`
}

// GetReservation handles GET /admin/reservations/{complaintID}.
func (h *AppointmentsHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	complaintID := strings.TrimSpace(chi.URLParam(r, "complaintID"))
	if complaintID == "" {
		jsonError(w, "missing complaintID", http.StatusBadRequest)
		return
	}
	held, err := h.holds.Get(r.Context(), complaintID)
	if errors.Is(err, reservation.ErrNotFound) {
		jsonError(w, "reservation not found or expired", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithComplaint(complaintID).Error("failed to load reservation", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	remaining := held.Remaining(h.now())
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, ReservationResponse{
		Reservation:      held,
		ExpiresInSeconds: int64(remaining / time.Second),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
