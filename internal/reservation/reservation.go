package reservation

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a slot hold lives without confirmation.
const DefaultTTL = 5 * time.Minute

var (
	// ErrNotFound means no unexpired reservation exists for the key.
	ErrNotFound = errors.New("reservation: not found or expired")
	// ErrInvalidTTL rejects holds without a positive lifetime.
	ErrInvalidTTL = errors.New("reservation: ttl must be positive")
)

// Reservation is a time-boxed hold on a doctor's slot, keyed by complaint id.
type Reservation struct {
	ComplaintID string    `json:"complaint_id"`
	DoctorID    int64     `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Remaining reports how long the hold has left relative to now.
func (r Reservation) Remaining(now time.Time) time.Duration {
	if r.ExpiresAt.IsZero() {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}

// Cache stores reservations with per-key expiry.
//
// Put overwrites any existing hold. Get never deletes. Delete is idempotent.
// Take is an atomic get-and-delete: among concurrent callers for the same key
// at most one receives the reservation, the rest see ErrNotFound.
type Cache interface {
	Put(ctx context.Context, key string, r Reservation, ttl time.Duration) error
	Get(ctx context.Context, key string) (Reservation, error)
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) (Reservation, error)
}
