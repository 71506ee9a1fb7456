package rental

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("rental not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// Start inserts an active rental after verifying the user has no other open
// rental. The check runs inside the insert transaction so two concurrent
// starts cannot both pass it.
func (r *Repository) Start(ctx context.Context, rental *Rental) (Rental, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Rental{}, err
	}
	defer tx.Rollback()

	var open uuid.UUID
	err = tx.GetContext(ctx, &open, verifyNoOpenRental, rental.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Rental{}, err
	}
	if open != uuid.Nil {
		return Rental{}, &rentalInProgressError{userID: rental.UserID}
	}

	var inserted Rental
	err = tx.GetContext(ctx, &inserted, startRentalQuery,
		rental.ID, rental.UserID, rental.BikeLabel, rental.OriginStationID, rental.StartedAt)
	if err != nil {
		return Rental{}, err
	}

	err = tx.Commit()
	return inserted, err
}

const verifyNoOpenRental = `SELECT id FROM rentals WHERE user_id = $1 AND ended_at IS NULL FOR UPDATE`

const startRentalQuery = `
INSERT INTO rentals (id, user_id, bike_label, origin_station_id, started_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING *
`

// Complete closes the user's open rental and reports the billable minutes.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, endStationID uuid.UUID) (int, error) {
	var minutes int
	err := r.db.GetContext(ctx, &minutes, completeRentalQuery, id, endStationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return minutes, err
}

const completeRentalQuery = `
UPDATE rentals SET ended_at = now(), end_station_id = $2
WHERE id = $1 AND ended_at IS NULL
RETURNING ceil(extract(epoch FROM (ended_at - started_at))/60)::int AS minutes
`

// GetCurrentByUser fetches the user's open rental, if any.
func (r *Repository) GetCurrentByUser(ctx context.Context, userID string) (Rental, error) {
	var rental Rental
	err := r.db.GetContext(ctx, &rental, getCurrentByUserQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental, ErrNotFound
	}
	return rental, err
}

const getCurrentByUserQuery = `
SELECT r.*, o.name AS origin_station
FROM rentals r
LEFT JOIN stations o ON r.origin_station_id = o.id
WHERE r.user_id = $1 AND r.ended_at IS NULL
`

// GetByUser fetches the user's rental history, newest first.
func (r *Repository) GetByUser(ctx context.Context, userID string) ([]Rental, error) {
	var rentals []Rental
	err := r.db.SelectContext(ctx, &rentals, getByUserQuery, userID)
	return rentals, err
}

const getByUserQuery = `
SELECT r.*, o.name AS origin_station, e.name AS end_station
FROM rentals r
LEFT JOIN stations o ON r.origin_station_id = o.id
LEFT JOIN stations e ON r.end_station_id = e.id
WHERE r.user_id = $1
ORDER BY r.started_at DESC
`

// GetActive fetches every open rental. Used to rebuild the in-memory fleet
// on boot.
func (r *Repository) GetActive(ctx context.Context) ([]Rental, error) {
	var rentals []Rental
	err := r.db.SelectContext(ctx, &rentals, getActiveQuery)
	return rentals, err
}

const getActiveQuery = `SELECT * FROM rentals WHERE ended_at IS NULL`

type rentalInProgressError struct {
	userID string
}

func (e *rentalInProgressError) Error() string {
	return "rental in progress for user " + e.userID
}

// UserFromRentalInProgressError unpacks the user behind an open-rental
// conflict, if err is one.
func UserFromRentalInProgressError(err error) (string, bool) {
	riperr, ok := err.(*rentalInProgressError)
	if ok {
		return riperr.userID, ok
	}
	return "", false
}
