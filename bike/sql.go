package bike

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotAvailable = errors.New("bike not available")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBikes(ctx context.Context) ([]Bike, error) {
	var bikes []Bike
	err := r.db.SelectContext(ctx, &bikes, getBikes)
	return bikes, err
}

const getBikes = `
SELECT b.*, s.name AS station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
ORDER BY b.label
`

func (r *Repository) GetBike(ctx context.Context, label string) (Bike, error) {
	var bike Bike

	err := r.db.GetContext(ctx, &bike, getBike, label)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}

	return bike, err
}

const getBike = `
SELECT b.*, s.name AS station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
WHERE b.label = $1
`

// GetBikeByID fetches a bike by its UUID.
func (r *Repository) GetBikeByID(ctx context.Context, id uuid.UUID) (Bike, error) {
	var bike Bike
	err := r.db.GetContext(ctx, &bike, getBikeByID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}
	return bike, err
}

const getBikeByID = `
SELECT b.*, s.name AS station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
WHERE b.id = $1
`

// GetBikesByStation fetches the bikes currently docked at a station.
func (r *Repository) GetBikesByStation(ctx context.Context, stationID uuid.UUID) ([]Bike, error) {
	var bikes []Bike
	err := r.db.SelectContext(ctx, &bikes, getBikesByStation, stationID)
	return bikes, err
}

const getBikesByStation = `
SELECT b.*, s.name AS station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
WHERE b.station_id = $1
ORDER BY b.label
`

func (r *Repository) Insert(ctx context.Context, b *Bike) (Bike, error) {
	var inserted Bike
	err := r.db.GetContext(ctx, &inserted, insertBike,
		b.ID, b.Label, b.IMEI, b.Type, b.Status, b.BatteryVoltage, b.StationID)
	return inserted, err
}

const insertBike = `
INSERT INTO bikes (id, label, imei, type, status, battery_voltage, station_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
RETURNING *
`

// SaveState writes the mutable portion of a bike row. The caller owns the
// in-memory state, so no read-back happens here.
func (r *Repository) SaveState(ctx context.Context, b *Bike) error {
	res, err := r.db.ExecContext(ctx, saveBikeState,
		b.Status, b.StationID, b.HeldBy, b.HoldExpiresAt, b.BatteryVoltage, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

const saveBikeState = `
UPDATE bikes
SET status = $1, station_id = $2, held_by = $3, hold_expires_at = $4, battery_voltage = $5, updated_at = now()
WHERE id = $6
`

// Hold places a reservation hold on an available bike. The row is locked for
// the duration of the transaction so two holders cannot race for the same
// bike.
func (r *Repository) Hold(ctx context.Context, label, userID string, expiresAt sql.NullTime) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status Status
	err = tx.GetContext(ctx, &status, holdBike_checkStatus, label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != StatusAvailable {
		return ErrNotAvailable
	}

	_, err = tx.ExecContext(ctx, holdBike, label, userID, expiresAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const holdBike_checkStatus = `SELECT status FROM bikes WHERE label = $1 FOR UPDATE`
const holdBike = `UPDATE bikes SET status = 'reserved', held_by = $2, hold_expires_at = $3, updated_at = now() WHERE label = $1`
