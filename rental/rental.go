package rental

import (
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Rental struct {
	ID              uuid.UUID      `db:"id"`
	UserID          string         `db:"user_id"`
	BikeLabel       string         `db:"bike_label"`
	OriginStationID uuid.UUID      `db:"origin_station_id"`
	EndStationID    *uuid.UUID     `db:"end_station_id"`
	StartedAt       time.Time      `db:"started_at"`
	EndedAt         sql.NullTime   `db:"ended_at"`
	OriginStation   sql.NullString `db:"origin_station"`
	EndStation      sql.NullString `db:"end_station"`
}

// New returns an active rental starting now.
func New(userID, bikeLabel string, originStationID uuid.UUID, now time.Time) *Rental {
	return &Rental{
		ID:              uuid.New(),
		UserID:          userID,
		BikeLabel:       bikeLabel,
		OriginStationID: originStationID,
		StartedAt:       now,
	}
}

// Status derives the rental status from the end timestamp.
func (r Rental) Status() Status {
	if r.EndedAt.Valid {
		return StatusCompleted
	}
	return StatusActive
}

// Complete closes the rental at the destination station.
func (r *Rental) Complete(endStationID uuid.UUID, now time.Time) {
	r.EndStationID = &endStationID
	r.EndedAt = sql.NullTime{Time: now, Valid: true}
}

// Minutes is the billable ride length, rounded up. Open rentals are measured
// against now.
func (r Rental) Minutes(now time.Time) int {
	end := now
	if r.EndedAt.Valid {
		end = r.EndedAt.Time
	}
	return int(math.Ceil(end.Sub(r.StartedAt).Minutes()))
}
