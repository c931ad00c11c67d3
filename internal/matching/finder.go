package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var matchingTracer = otel.Tracer("clinic.internal.matching")

// DefaultHorizonDays bounds how far ahead the finder searches.
const DefaultHorizonDays = 30

// ErrNoAvailability means no doctor has an open slot within the horizon.
var ErrNoAvailability = errors.New("matching: no availability")

// CandidateSlot is the earliest open slot found for a request.
type CandidateSlot struct {
	DoctorID   int64
	DoctorName string
	Date       time.Time
	Time       string
}

// DateString renders Date as YYYY-MM-DD.
func (c CandidateSlot) DateString() string {
	return c.Date.Format(schedule.DateLayout)
}

// Finder searches doctor schedules for the earliest open slot.
type Finder struct {
	store       schedule.Store
	horizonDays int
	step        time.Duration
	logger      *logging.Logger
}

// FinderOption customizes a Finder.
type FinderOption func(*Finder)

// WithHorizonDays sets how many days past today are searched.
func WithHorizonDays(days int) FinderOption {
	return func(f *Finder) {
		if days >= 0 {
			f.horizonDays = days
		}
	}
}

// WithSlotInterval sets the slot grid step.
func WithSlotInterval(step time.Duration) FinderOption {
	return func(f *Finder) {
		if step >= time.Minute {
			f.step = step
		}
	}
}

// NewFinder constructs a Finder over store.
func NewFinder(store schedule.Store, logger *logging.Logger, opts ...FinderOption) *Finder {
	if store == nil {
		panic("matching: schedule store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	f := &Finder{
		store:       store,
		horizonDays: DefaultHorizonDays,
		step:        DefaultSlotInterval,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HorizonDays reports the configured search horizon.
func (f *Finder) HorizonDays() int {
	return f.horizonDays
}

// FindEarliest returns the earliest open slot for specialty on or after today.
// Dates are scanned in order and the scan stops at the first date with any
// candidate; among that date's candidates the smallest time wins, ties going
// to the first doctor returned by the store.
func (f *Finder) FindEarliest(ctx context.Context, specialty string, today time.Time) (CandidateSlot, error) {
	ctx, span := matchingTracer.Start(ctx, "matching.find_earliest")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.specialty", specialty))

	start := schedule.DateOnly(today)
	for offset := 0; offset <= f.horizonDays; offset++ {
		date := start.AddDate(0, 0, offset)
		candidates, err := f.candidatesOn(ctx, specialty, date)
		if err != nil {
			span.RecordError(err)
			return CandidateSlot{}, err
		}
		if len(candidates) == 0 {
			continue
		}

		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Time < best.Time {
				best = c
			}
		}
		span.SetAttributes(
			attribute.Int64("clinic.doctor_id", best.DoctorID),
			attribute.String("clinic.slot", best.DateString()+" "+best.Time),
		)
		f.logger.Debug("earliest slot found",
			"specialty", specialty,
			"doctor_id", best.DoctorID,
			"date", best.DateString(),
			"time", best.Time,
			"candidates", len(candidates),
		)
		return best, nil
	}
	return CandidateSlot{}, ErrNoAvailability
}

func (f *Finder) candidatesOn(ctx context.Context, specialty string, date time.Time) ([]CandidateSlot, error) {
	weekday := date.Weekday()
	doctors, err := f.store.DoctorsForSpecialtyOnWeekday(ctx, specialty, weekday)
	if err != nil {
		return nil, fmt.Errorf("matching: list doctors for %s: %w", weekday, err)
	}

	var candidates []CandidateSlot
	for _, doctor := range doctors {
		shift, err := f.store.ShiftForDoctorOnWeekday(ctx, doctor.ID, weekday)
		if err != nil {
			return nil, fmt.Errorf("matching: load shift for doctor %d: %w", doctor.ID, err)
		}
		if shift == nil {
			continue
		}
		booked, err := f.store.BookedTimesForDoctorOnDate(ctx, doctor.ID, date)
		if err != nil {
			return nil, fmt.Errorf("matching: load bookings for doctor %d: %w", doctor.ID, err)
		}
		slot, ok := EarliestSlot(*shift, booked, f.step)
		if !ok {
			continue
		}
		candidates = append(candidates, CandidateSlot{
			DoctorID:   doctor.ID,
			DoctorName: doctor.Name,
			Date:       date,
			Time:       slot,
		})
	}
	return candidates, nil
}

// AvailableSlots lists the open slots of one doctor on date. A doctor without
// a shift that weekday has no slots.
func (f *Finder) AvailableSlots(ctx context.Context, doctorID int64, date time.Time) ([]string, error) {
	ctx, span := matchingTracer.Start(ctx, "matching.available_slots")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.doctor_id", doctorID))

	date = schedule.DateOnly(date)
	shift, err := f.store.ShiftForDoctorOnWeekday(ctx, doctorID, date.Weekday())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("matching: load shift for doctor %d: %w", doctorID, err)
	}
	if shift == nil {
		return []string{}, nil
	}
	booked, err := f.store.BookedTimesForDoctorOnDate(ctx, doctorID, date)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("matching: load bookings for doctor %d: %w", doctorID, err)
	}
	return AvailableSlots(*shift, booked, f.step), nil
}
