package reservation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound        = errors.New("reservation not found")
	ErrAlreadyReserved = errors.New("user already has an active reservation")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an active hold after checking the user has no other active
// one. The check runs inside the insert transaction.
func (r *Repository) Create(ctx context.Context, res *Reservation) (Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Reservation{}, err
	}
	defer tx.Rollback()

	var existing []uuid.UUID
	err = tx.SelectContext(ctx, &existing, checkActiveReservationQuery, res.UserID)
	if err != nil {
		return Reservation{}, err
	}
	if len(existing) > 0 {
		return Reservation{}, ErrAlreadyReserved
	}

	var inserted Reservation
	err = tx.GetContext(ctx, &inserted, createReservationQuery,
		res.ID, res.UserID, res.BikeLabel, res.StationID, res.CreatedAt, res.ExpiresAt, res.Status)
	if err != nil {
		return Reservation{}, err
	}

	return inserted, tx.Commit()
}

const checkActiveReservationQuery = `
SELECT id FROM reservations
WHERE user_id = $1 AND status = 'active' AND expires_at > now()
FOR UPDATE
`

const createReservationQuery = `
INSERT INTO reservations (id, user_id, bike_label, station_id, created_at, expires_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING *
`

// SetStatus records a hold's transition to used, cancelled or expired.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := r.db.ExecContext(ctx, setReservationStatusQuery, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

const setReservationStatusQuery = `UPDATE reservations SET status = $2 WHERE id = $1`

// GetActiveByUser fetches the user's active hold, if any.
func (r *Repository) GetActiveByUser(ctx context.Context, userID string) (Reservation, error) {
	var res Reservation
	err := r.db.GetContext(ctx, &res, getActiveByUserQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return res, ErrNotFound
	}
	return res, err
}

const getActiveByUserQuery = `
SELECT r.*, s.name AS station_name
FROM reservations r
LEFT JOIN stations s ON r.station_id = s.id
WHERE r.user_id = $1 AND r.status = 'active'
`

// GetByUser fetches the user's hold history, newest first.
func (r *Repository) GetByUser(ctx context.Context, userID string) ([]Reservation, error) {
	var reservations []Reservation
	err := r.db.SelectContext(ctx, &reservations, getReservationsByUserQuery, userID)
	return reservations, err
}

const getReservationsByUserQuery = `
SELECT r.*, s.name AS station_name
FROM reservations r
LEFT JOIN stations s ON r.station_id = s.id
WHERE r.user_id = $1
ORDER BY r.created_at DESC
`

// GetActive fetches every active hold. Used to rebuild the in-memory fleet
// on boot.
func (r *Repository) GetActive(ctx context.Context) ([]Reservation, error) {
	var reservations []Reservation
	err := r.db.SelectContext(ctx, &reservations, getActiveReservationsQuery)
	return reservations, err
}

const getActiveReservationsQuery = `SELECT * FROM reservations WHERE status = 'active'`
