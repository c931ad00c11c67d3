package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresStoreWithQuerier(mock), mock
}

func TestPostgresDoctorsForSpecialty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT d.id").
		WithArgs("%cardio%", "Monday").
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_name", "department_name"}).
			AddRow(int64(1), "Petrova Anna Sergeevna", "Cardiology").
			AddRow(int64(4), "Smirnov Oleg", "Pediatric Cardiology"))

	doctors, err := store.DoctorsForSpecialtyOnWeekday(context.Background(), " cardio ", time.Monday)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, Doctor{ID: 1, Name: "Petrova Anna Sergeevna", Department: "Cardiology"}, doctors[0])
	assert.Equal(t, int64(4), doctors[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDoctorsForSpecialtyEscapesWildcards(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT d.id").
		WithArgs(`%100\%\_ok%`, "Friday").
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_name", "department_name"}))

	doctors, err := store.DoctorsForSpecialtyOnWeekday(context.Background(), "100%_ok", time.Friday)
	require.NoError(t, err)
	assert.Empty(t, doctors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresShiftForDoctor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM schedules s").
		WithArgs(int64(1), "Monday").
		WillReturnRows(pgxmock.NewRows([]string{"start", "end"}).AddRow("09:00", "13:00"))
	mock.ExpectQuery("FROM schedules s").
		WithArgs(int64(2), "Monday").
		WillReturnError(pgx.ErrNoRows)

	shift, err := store.ShiftForDoctorOnWeekday(context.Background(), 1, time.Monday)
	require.NoError(t, err)
	require.NotNil(t, shift)
	assert.Equal(t, Shift{Start: "09:00", End: "13:00"}, *shift)

	shift, err = store.ShiftForDoctorOnWeekday(context.Background(), 2, time.Monday)
	require.NoError(t, err)
	assert.Nil(t, shift, "missing shift row means no shift")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresShiftQueryFailure(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("FROM schedules s").WithArgs(int64(1), "Tuesday").WillReturnError(boom)

	_, err := store.ShiftForDoctorOnWeekday(context.Background(), 1, time.Tuesday)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPostgresBookedTimes(t *testing.T) {
	store, mock := newMockStore(t)
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM appointments a").
		WithArgs(int64(1), "2024-06-03").
		WillReturnRows(pgxmock.NewRows([]string{"time"}).AddRow("09:00").AddRow("10:30"))

	booked, err := store.BookedTimesForDoctorOnDate(context.Background(), 1, date)
	require.NoError(t, err)
	assert.Len(t, booked, 2)
	assert.Contains(t, booked, "09:00")
	assert.Contains(t, booked, "10:30")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAppointment(t *testing.T) {
	store, mock := newMockStore(t)
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(42), int64(1), "2024-06-03", "09:00", StatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(99), created))

	appt, err := store.CreateAppointment(context.Background(), AppointmentInput{
		DoctorID:  1,
		PatientID: 42,
		Date:      date,
		Time:      "09:00",
		Status:    StatusConfirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), appt.ID)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, created, appt.CreatedAt)
	assert.Equal(t, date, appt.Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAppointmentDefaultsToPending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(2), "2024-06-04", "11:00", StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	appt, err := store.CreateAppointment(context.Background(), AppointmentInput{
		DoctorID:  2,
		PatientID: 5,
		Date:      time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
		Time:      "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}
