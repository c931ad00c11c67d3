package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

var errTransient = errors.New("connection reset")

var fastRetry = Backoff{MaxAttempts: 3, BaseDelay: time.Millisecond}

type published struct {
	topic   events.Topic
	payload any
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []published
	failures int
}

func (p *recordingPublisher) Publish(_ context.Context, topic events.Topic, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errTransient
	}
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails CreateAppointment a fixed number of times before delegating.
type flakyStore struct {
	*schedule.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) CreateAppointment(ctx context.Context, in schedule.AppointmentInput) (*schedule.Appointment, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, errTransient
	}
	return s.MemoryStore.CreateAppointment(ctx, in)
}

// mondayMorning is 2024-06-03 08:00 UTC, a Monday.
var mondayMorning = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func cardiologyStore() *schedule.MemoryStore {
	store := schedule.NewMemoryStore()
	store.AddDoctor(schedule.Doctor{ID: 1, Name: "D1 Name", Department: "Cardiology"})
	store.AddShift(1, time.Monday, "09:00", "09:30")
	return store
}
