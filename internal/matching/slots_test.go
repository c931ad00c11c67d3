package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

func booked(times ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(times))
	for _, t := range times {
		out[t] = struct{}{}
	}
	return out
}

func TestEarliestSlot(t *testing.T) {
	tests := []struct {
		name   string
		shift  schedule.Shift
		booked map[string]struct{}
		want   string
		found  bool
	}{
		{"empty shift start", schedule.Shift{Start: "09:00", End: "10:00"}, nil, "09:00", true},
		{"skips booked", schedule.Shift{Start: "09:00", End: "10:00"}, booked("09:00"), "09:30", true},
		{"fully booked", schedule.Shift{Start: "09:00", End: "10:00"}, booked("09:00", "09:30"), "", false},
		{"end is exclusive", schedule.Shift{Start: "09:00", End: "09:30"}, booked("09:00"), "", false},
		{"seconds in db time", schedule.Shift{Start: "08:00:00", End: "09:00:00"}, booked("08:00"), "08:30", true},
		{"inverted window", schedule.Shift{Start: "18:00", End: "09:00"}, nil, "", false},
		{"garbage", schedule.Shift{Start: "nine", End: "ten"}, nil, "", false},
		{"runs to midnight", schedule.Shift{Start: "23:00", End: "24:00"}, booked("23:00"), "23:30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EarliestSlot(tt.shift, tt.booked, 30*time.Minute)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEarliestSlotDefaultsStep(t *testing.T) {
	got, ok := EarliestSlot(schedule.Shift{Start: "09:00", End: "10:00"}, booked("09:00"), 0)
	assert.True(t, ok)
	assert.Equal(t, "09:30", got)
}

func TestAvailableSlots(t *testing.T) {
	slots := AvailableSlots(schedule.Shift{Start: "09:00", End: "11:00"}, booked("09:30"), 30*time.Minute)
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, slots)

	assert.Empty(t, AvailableSlots(schedule.Shift{Start: "bad", End: "11:00"}, nil, 30*time.Minute))
}
