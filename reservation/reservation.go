// Package reservation models the soft hold a rider can place on a docked
// bike: a time-limited claim that blocks other riders from taking that bike
// without removing it from the station until checkout.
package reservation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusUsed      Status = "used"
	StatusCancelled Status = "cancelled"
)

type Reservation struct {
	ID          uuid.UUID      `db:"id"`
	UserID      string         `db:"user_id"`
	BikeLabel   string         `db:"bike_label"`
	StationID   uuid.UUID      `db:"station_id"`
	StationName sql.NullString `db:"station_name"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
	Status      Status         `db:"status"`
}

// New returns an active hold expiring holdFor from now.
func New(userID, bikeLabel string, stationID uuid.UUID, now time.Time, holdFor time.Duration) *Reservation {
	return &Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		BikeLabel: bikeLabel,
		StationID: stationID,
		CreatedAt: now,
		ExpiresAt: now.Add(holdFor),
		Status:    StatusActive,
	}
}

// StatusAt derives the effective status at a given time. A hold whose expiry
// has passed reads as expired even before the sweeper has marked it.
func (r Reservation) StatusAt(now time.Time) Status {
	if r.Status == StatusActive && r.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return r.Status
}

// ActiveAt reports whether the hold can still be redeemed at now.
func (r Reservation) ActiveAt(now time.Time) bool {
	return r.StatusAt(now) == StatusActive
}

// Use marks the hold redeemed by a checkout.
func (r *Reservation) Use() {
	r.Status = StatusUsed
}

// Cancel withdraws the hold.
func (r *Reservation) Cancel() {
	r.Status = StatusCancelled
}

// Expire marks the hold lapsed. The record is kept, not deleted.
func (r *Reservation) Expire() {
	r.Status = StatusExpired
}
