package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var scheduleTracer = otel.Tracer("clinic.internal.schedule")

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads schedules and books appointments in Postgres.
type PostgresStore struct {
	db rowQuerier
}

// NewPostgresStore creates a store backed by pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(db rowQuerier) *PostgresStore {
	if db == nil {
		panic("schedule: querier required")
	}
	return &PostgresStore{db: db}
}

const doctorsForSpecialtySQL = `
	SELECT DISTINCT d.id,
		concat_ws(' ', u.last_name, u.first_name, u.second_name) AS doctor_name,
		dep.department_name
	FROM doctors d
	JOIN users u ON u.id = d.user_id
	JOIN departments dep ON dep.id = d.department_id
	JOIN schedules s ON s.doctor_id = d.id
	WHERE dep.department_name ILIKE $1 ESCAPE '\'
		AND s.day_of_week = $2
	ORDER BY d.id
`

// DoctorsForSpecialtyOnWeekday lists doctors in departments matching specialty
// (case-insensitive substring) that have a schedule entry on weekday.
func (s *PostgresStore) DoctorsForSpecialtyOnWeekday(ctx context.Context, specialty string, weekday time.Weekday) ([]Doctor, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.doctors_for_specialty")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.specialty", specialty),
		attribute.String("clinic.weekday", weekday.String()),
	)

	rows, err := s.db.Query(ctx, doctorsForSpecialtySQL, likePattern(specialty), weekday.String())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: query doctors for specialty: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Department); err != nil {
			return nil, fmt.Errorf("schedule: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: iterate doctors: %w", err)
	}
	return doctors, nil
}

const shiftForDoctorSQL = `
	SELECT to_char(sh.start_time, 'HH24:MI'), to_char(sh.end_time, 'HH24:MI')
	FROM schedules s
	JOIN shifts sh ON sh.id = s.shift_id
	WHERE s.doctor_id = $1 AND s.day_of_week = $2
	ORDER BY sh.start_time
	LIMIT 1
`

// ShiftForDoctorOnWeekday returns the doctor's shift window for weekday.
func (s *PostgresStore) ShiftForDoctorOnWeekday(ctx context.Context, doctorID int64, weekday time.Weekday) (*Shift, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.shift_for_doctor")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.doctor_id", doctorID))

	var shift Shift
	err := s.db.QueryRow(ctx, shiftForDoctorSQL, doctorID, weekday.String()).Scan(&shift.Start, &shift.End)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: load shift: %w", err)
	}
	return &shift, nil
}

const bookedTimesSQL = `
	SELECT to_char(a.time, 'HH24:MI')
	FROM appointments a
	WHERE a.doctor_id = $1 AND a.date = $2
`

// BookedTimesForDoctorOnDate returns the HH:MM start times already booked.
func (s *PostgresStore) BookedTimesForDoctorOnDate(ctx context.Context, doctorID int64, date time.Time) (map[string]struct{}, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.booked_times")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.doctor_id", doctorID),
		attribute.String("clinic.date", dateKey(date)),
	)

	rows, err := s.db.Query(ctx, bookedTimesSQL, doctorID, dateKey(date))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: query booked times: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("schedule: scan booked time: %w", err)
		}
		booked[t] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: iterate booked times: %w", err)
	}
	return booked, nil
}

const insertAppointmentSQL = `
	INSERT INTO appointments (patient_id, doctor_id, date, time, status)
	VALUES ($1, $2, $3::date, $4::time, $5)
	RETURNING id, created_at
`

// CreateAppointment books a visit and returns the stored row.
func (s *PostgresStore) CreateAppointment(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.create_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.doctor_id", in.DoctorID),
		attribute.Int64("clinic.patient_id", in.PatientID),
	)

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	appt := &Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      DateOnly(in.Date),
		Time:      in.Time,
		Status:    status,
	}
	err := s.db.QueryRow(ctx, insertAppointmentSQL, in.PatientID, in.DoctorID, dateKey(in.Date), in.Time, status).
		Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("schedule: insert appointment: %w", err)
	}
	return appt, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}
