package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// AppointmentStore persists confirmed appointments.
type AppointmentStore interface {
	BookedTimesForDoctorOnDate(ctx context.Context, doctorID int64, date time.Time) (map[string]struct{}, error)
	CreateAppointment(ctx context.Context, in schedule.AppointmentInput) (*schedule.Appointment, error)
}

const restoreTimeout = 5 * time.Second

// ConfirmationHandler claims a held slot and either books it or releases it.
type ConfirmationHandler struct {
	cache     reservation.Cache
	store     AppointmentStore
	publisher Publisher
	logger    *logging.Logger
	cfg       handlerConfig
}

// NewConfirmationHandler panics on nil dependencies.
func NewConfirmationHandler(cache reservation.Cache, store AppointmentStore, publisher Publisher, logger *logging.Logger, opts ...HandlerOption) *ConfirmationHandler {
	if cache == nil {
		panic("booking: reservation cache required")
	}
	if store == nil {
		panic("booking: appointment store required")
	}
	if publisher == nil {
		panic("booking: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ConfirmationHandler{cache: cache, store: store, publisher: publisher, logger: logger, cfg: cfg}
}

// Handle processes one confirmation body.
func (h *ConfirmationHandler) Handle(ctx context.Context, body string) error {
	var msg events.Confirmation
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("%w: decode confirmation: %v", ErrMalformed, err)
	}
	msg.ComplaintID = strings.TrimSpace(msg.ComplaintID)
	if msg.ComplaintID == "" {
		return fmt.Errorf("%w: confirmation needs complaint_id", ErrMalformed)
	}
	if msg.Confirmed && msg.PatientID <= 0 {
		return fmt.Errorf("%w: confirmed without patient_id", ErrMalformed)
	}

	ctx, span := bookingTracer.Start(ctx, "booking.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.complaint_id", msg.ComplaintID),
		attribute.Bool("clinic.confirmed", msg.Confirmed),
	)
	log := h.logger.WithComplaint(msg.ComplaintID)

	held, err := h.cache.Take(ctx, msg.ComplaintID)
	if errors.Is(err, reservation.ErrNotFound) {
		log.Info("confirmation for missing reservation")
		h.cfg.metrics.ObserveReservation("missing")
		return h.fail(ctx, msg.ComplaintID, events.MessageReservationMissing)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: claim reservation: %w", err)
	}

	if !msg.Confirmed {
		log.Info("reservation cancelled by patient", "doctor_id", held.DoctorID, "date", held.Date, "time", held.Time)
		h.cfg.metrics.ObserveReservation("cancelled")
		return h.result(ctx, msg.ComplaintID, events.MessageReservationCancelled)
	}

	date, err := schedule.ParseDate(held.Date)
	if err != nil {
		log.Error("stored reservation has invalid date", "error", err, "date", held.Date)
		h.cfg.metrics.ObserveReservation("missing")
		return h.fail(ctx, msg.ComplaintID, events.MessageReservationMissing)
	}

	if h.cfg.recheck {
		booked, err := h.store.BookedTimesForDoctorOnDate(ctx, held.DoctorID, date)
		if err != nil {
			h.restore(msg.ComplaintID, held, log)
			span.RecordError(err)
			return fmt.Errorf("booking: recheck slot: %w", err)
		}
		if _, taken := booked[held.Time]; taken {
			log.Warn("held slot already booked", "doctor_id", held.DoctorID, "date", held.Date, "time", held.Time)
			h.cfg.metrics.ObserveReservation("conflict")
			return h.fail(ctx, msg.ComplaintID, events.MessageSlotTaken)
		}
	}

	appt, err := h.store.CreateAppointment(ctx, schedule.AppointmentInput{
		DoctorID:  held.DoctorID,
		PatientID: msg.PatientID,
		Date:      date,
		Time:      held.Time,
		Status:    schedule.StatusConfirmed,
	})
	if err != nil {
		// Put the hold back so the retried or redelivered message can still book it.
		h.restore(msg.ComplaintID, held, log)
		span.RecordError(err)
		return fmt.Errorf("booking: create appointment: %w", err)
	}
	h.cfg.metrics.ObserveReservation("confirmed")
	log.Info("appointment confirmed",
		"appointment_id", appt.ID,
		"patient_id", msg.PatientID,
		"doctor_id", held.DoctorID,
		"date", held.Date,
		"time", held.Time,
	)
	return h.result(ctx, msg.ComplaintID, events.MessageAppointmentConfirmed)
}

func (h *ConfirmationHandler) restore(key string, held reservation.Reservation, log *logging.Logger) {
	remaining := held.Remaining(h.cfg.now())
	if remaining <= 0 {
		log.Info("claimed reservation expired before it could be restored")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := h.cache.Put(ctx, key, held, remaining); err != nil {
		log.Error("failed to restore reservation", "error", err)
		return
	}
	h.cfg.metrics.ObserveReservation("restored")
}

func (h *ConfirmationHandler) result(ctx context.Context, complaintID, message string) error {
	return publishWithRetry(ctx, h.publisher, h.cfg.publishRetry, events.TopicResults, events.ConfirmationResult{
		ComplaintID: complaintID,
		Message:     message,
	})
}

func (h *ConfirmationHandler) fail(ctx context.Context, complaintID, message string) error {
	return publishWithRetry(ctx, h.publisher, h.cfg.publishRetry, events.TopicErrors, events.Failure{
		ComplaintID: complaintID,
		Message:     message,
	})
}
