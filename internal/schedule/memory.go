package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-process demos.
type MemoryStore struct {
	mu           sync.RWMutex
	doctors      []Doctor
	shifts       map[int64]map[time.Weekday]*Shift
	scheduled    map[int64]map[time.Weekday]bool
	appointments []Appointment
	nextID       int64
	now          func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shifts:    make(map[int64]map[time.Weekday]*Shift),
		scheduled: make(map[int64]map[time.Weekday]bool),
		now:       time.Now,
	}
}

// AddDoctor registers a doctor.
func (m *MemoryStore) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors = append(m.doctors, d)
}

// AddShift schedules doctorID on weekday with the given window.
func (m *MemoryStore) AddShift(doctorID int64, weekday time.Weekday, start, end string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markScheduled(doctorID, weekday)
	if m.shifts[doctorID] == nil {
		m.shifts[doctorID] = make(map[time.Weekday]*Shift)
	}
	m.shifts[doctorID][weekday] = &Shift{Start: start, End: end}
}

// AddScheduleWithoutShift records a schedule entry whose shift row is missing.
func (m *MemoryStore) AddScheduleWithoutShift(doctorID int64, weekday time.Weekday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markScheduled(doctorID, weekday)
}

func (m *MemoryStore) markScheduled(doctorID int64, weekday time.Weekday) {
	if m.scheduled[doctorID] == nil {
		m.scheduled[doctorID] = make(map[time.Weekday]bool)
	}
	m.scheduled[doctorID][weekday] = true
}

// Appointments returns a copy of every booked appointment.
func (m *MemoryStore) Appointments() []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Appointment, len(m.appointments))
	copy(out, m.appointments)
	return out
}

func (m *MemoryStore) DoctorsForSpecialtyOnWeekday(_ context.Context, specialty string, weekday time.Weekday) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(specialty))
	var out []Doctor
	for _, d := range m.doctors {
		if !strings.Contains(strings.ToLower(d.Department), needle) {
			continue
		}
		if !m.scheduled[d.ID][weekday] {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ShiftForDoctorOnWeekday(_ context.Context, doctorID int64, weekday time.Weekday) (*Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shift, ok := m.shifts[doctorID][weekday]
	if !ok {
		return nil, nil
	}
	cp := *shift
	return &cp, nil
}

func (m *MemoryStore) BookedTimesForDoctorOnDate(_ context.Context, doctorID int64, date time.Time) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := dateKey(date)
	booked := make(map[string]struct{})
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && dateKey(a.Date) == key {
			booked[a.Time] = struct{}{}
		}
	}
	return booked, nil
}

func (m *MemoryStore) CreateAppointment(_ context.Context, in AppointmentInput) (*Appointment, error) {
	if _, err := time.Parse(TimeLayout, in.Time); err != nil {
		return nil, fmt.Errorf("schedule: invalid appointment time %q: %w", in.Time, err)
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	appt := Appointment{
		ID:        m.nextID,
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      DateOnly(in.Date),
		Time:      in.Time,
		Status:    status,
		CreatedAt: m.now().UTC(),
	}
	m.appointments = append(m.appointments, appt)
	return &appt, nil
}
