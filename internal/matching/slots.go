package matching

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// DefaultSlotInterval is the appointment grid inside a shift.
const DefaultSlotInterval = 30 * time.Minute

// EarliestSlot walks the shift from its start in step increments (end exclusive)
// and returns the first increment that is not booked.
func EarliestSlot(shift schedule.Shift, booked map[string]struct{}, step time.Duration) (string, bool) {
	start, end, stepMin, ok := shiftBounds(shift, step)
	if !ok {
		return "", false
	}
	for m := start; m < end; m += stepMin {
		slot := formatClock(m)
		if _, taken := booked[slot]; !taken {
			return slot, true
		}
	}
	return "", false
}

// AvailableSlots lists every open increment of the shift.
func AvailableSlots(shift schedule.Shift, booked map[string]struct{}, step time.Duration) []string {
	start, end, stepMin, ok := shiftBounds(shift, step)
	if !ok {
		return []string{}
	}
	slots := make([]string, 0, (end-start)/stepMin+1)
	for m := start; m < end; m += stepMin {
		slot := formatClock(m)
		if _, taken := booked[slot]; !taken {
			slots = append(slots, slot)
		}
	}
	return slots
}

func shiftBounds(shift schedule.Shift, step time.Duration) (int, int, int, bool) {
	stepMin := int(step / time.Minute)
	if stepMin <= 0 {
		stepMin = int(DefaultSlotInterval / time.Minute)
	}
	start, err := parseClock(shift.Start)
	if err != nil {
		return 0, 0, 0, false
	}
	end, err := parseClock(shift.End)
	if err != nil || end <= start {
		return 0, 0, 0, false
	}
	return start, end, stepMin, true
}

// parseClock accepts HH:MM or HH:MM:SS and returns minutes since midnight.
func parseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("matching: invalid clock %q", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("matching: invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("matching: invalid minute in %q", value)
	}
	total := h*60 + m
	if total > 24*60 {
		return 0, fmt.Errorf("matching: clock %q past midnight", value)
	}
	return total, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
