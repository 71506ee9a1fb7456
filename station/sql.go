package station

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("station not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetStations(ctx context.Context) ([]Station, error) {
	var stations []Station
	err := r.db.SelectContext(ctx, &stations, getStations)
	return stations, err
}

const getStations = `SELECT * FROM stations ORDER BY name`

func (r *Repository) GetStation(ctx context.Context, id uuid.UUID) (Station, error) {
	var station Station
	err := r.db.GetContext(ctx, &station, getStation, id)
	if errors.Is(err, sql.ErrNoRows) {
		return station, ErrNotFound
	}
	return station, err
}

const getStation = `SELECT * FROM stations WHERE id = $1`

func (r *Repository) Insert(ctx context.Context, s *Station) (Station, error) {
	var inserted Station
	err := r.db.GetContext(ctx, &inserted, insertStation,
		s.ID, s.Name, s.Address, s.OpeningHours, s.Type, s.Capacity, s.Status)
	return inserted, err
}

const insertStation = `
INSERT INTO stations (id, name, address, opening_hours, type, capacity, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING *
`

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := r.db.ExecContext(ctx, setStationStatus, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

const setStationStatus = `UPDATE stations SET status = $2 WHERE id = $1`
