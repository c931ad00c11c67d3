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
	"github.com/wolfman30/clinic-scheduler/internal/matching"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SlotFinder locates the earliest open slot for a specialty.
type SlotFinder interface {
	FindEarliest(ctx context.Context, specialty string, today time.Time) (matching.CandidateSlot, error)
	HorizonDays() int
}

// MatchHandler turns a match request into a held slot and a success event,
// or a failure event when nothing is free within the horizon.
type MatchHandler struct {
	finder    SlotFinder
	cache     reservation.Cache
	publisher Publisher
	logger    *logging.Logger
	cfg       handlerConfig
}

// NewMatchHandler panics on nil dependencies.
func NewMatchHandler(finder SlotFinder, cache reservation.Cache, publisher Publisher, logger *logging.Logger, opts ...HandlerOption) *MatchHandler {
	if finder == nil {
		panic("booking: slot finder required")
	}
	if cache == nil {
		panic("booking: reservation cache required")
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
	return &MatchHandler{finder: finder, cache: cache, publisher: publisher, logger: logger, cfg: cfg}
}

// Handle processes one match request body.
func (h *MatchHandler) Handle(ctx context.Context, body string) error {
	var req events.MatchRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return fmt.Errorf("%w: decode match request: %v", ErrMalformed, err)
	}
	req.ComplaintID = strings.TrimSpace(req.ComplaintID)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if req.ComplaintID == "" || req.Specialty == "" {
		return fmt.Errorf("%w: match request needs complaint_id and specialty", ErrMalformed)
	}

	ctx, span := bookingTracer.Start(ctx, "booking.match")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.complaint_id", req.ComplaintID),
		attribute.String("clinic.specialty", req.Specialty),
	)
	log := h.logger.WithComplaint(req.ComplaintID)

	today := h.cfg.now().In(h.cfg.location)
	slot, err := h.finder.FindEarliest(ctx, req.Specialty, today)
	if errors.Is(err, matching.ErrNoAvailability) {
		log.Info("no availability", "specialty", req.Specialty, "horizon_days", h.finder.HorizonDays())
		h.cfg.metrics.ObserveReservation("unavailable")
		return publishWithRetry(ctx, h.publisher, h.cfg.publishRetry, events.TopicErrors, events.Failure{
			ComplaintID: req.ComplaintID,
			Message:     fmt.Sprintf("no availability in next %d days", h.finder.HorizonDays()),
		})
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: find slot: %w", err)
	}

	held := reservation.Reservation{
		ComplaintID: req.ComplaintID,
		DoctorID:    slot.DoctorID,
		DoctorName:  slot.DoctorName,
		Date:        slot.DateString(),
		Time:        slot.Time,
		ExpiresAt:   h.cfg.now().Add(h.cfg.ttl).UTC(),
	}
	if err := h.cache.Put(ctx, req.ComplaintID, held, h.cfg.ttl); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: hold slot: %w", err)
	}
	h.cfg.metrics.ObserveReservation("held")
	log.Info("slot held",
		"doctor_id", held.DoctorID,
		"date", held.Date,
		"time", held.Time,
		"ttl", h.cfg.ttl.String(),
	)

	return publishWithRetry(ctx, h.publisher, h.cfg.publishRetry, events.TopicResults, events.MatchSucceeded{
		ComplaintID: req.ComplaintID,
		Doctor:      held.DoctorName,
		Date:        held.Date,
		Time:        held.Time,
	})
}
