package schedule

import (
	"context"
	"time"
)

// Layouts used on the wire and in the schedule tables.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Appointment statuses.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "confirmed"
)

// Doctor is a doctor working in a department.
type Doctor struct {
	ID         int64
	Name       string
	Department string
}

// Shift is a doctor's working window for one weekday, as zero-padded HH:MM.
type Shift struct {
	Start string
	End   string
}

// Appointment is a booked visit (a "talon" in the clinic's vocabulary).
type Appointment struct {
	ID        int64
	PatientID int64
	DoctorID  int64
	Date      time.Time
	Time      string
	Status    string
	CreatedAt time.Time
}

// AppointmentInput carries the fields needed to book an appointment.
type AppointmentInput struct {
	DoctorID  int64
	PatientID int64
	Date      time.Time
	Time      string
	Status    string
}

// Store is the read/book surface of the clinic schedule.
// ShiftForDoctorOnWeekday returns nil, nil when the doctor has no shift that day.
type Store interface {
	DoctorsForSpecialtyOnWeekday(ctx context.Context, specialty string, weekday time.Weekday) ([]Doctor, error)
	ShiftForDoctorOnWeekday(ctx context.Context, doctorID int64, weekday time.Weekday) (*Shift, error)
	BookedTimesForDoctorOnDate(ctx context.Context, doctorID int64, date time.Time) (map[string]struct{}, error)
	CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error)
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

func dateKey(t time.Time) string {
	return t.Format(DateLayout)
}
