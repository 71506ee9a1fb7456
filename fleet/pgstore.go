package fleet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/rental"
	"github.com/semanticallynull/dockshare-backend/reservation"
	"github.com/semanticallynull/dockshare-backend/station"
)

// PGStore is the PostgreSQL Store, composed from the per-entity
// repositories.
type PGStore struct {
	stations     *station.Repository
	bikes        *bike.Repository
	rentals      *rental.Repository
	reservations *reservation.Repository
}

func NewPGStore(stations *station.Repository, bikes *bike.Repository, rentals *rental.Repository, reservations *reservation.Repository) *PGStore {
	return &PGStore{
		stations:     stations,
		bikes:        bikes,
		rentals:      rentals,
		reservations: reservations,
	}
}

func (s *PGStore) LoadStations(ctx context.Context) ([]station.Station, error) {
	return s.stations.GetStations(ctx)
}

func (s *PGStore) LoadBikes(ctx context.Context) ([]bike.Bike, error) {
	return s.bikes.GetBikes(ctx)
}

func (s *PGStore) LoadActiveRentals(ctx context.Context) ([]rental.Rental, error) {
	return s.rentals.GetActive(ctx)
}

func (s *PGStore) LoadActiveReservations(ctx context.Context) ([]reservation.Reservation, error) {
	return s.reservations.GetActive(ctx)
}

func (s *PGStore) CreateStation(ctx context.Context, st *station.Station) error {
	_, err := s.stations.Insert(ctx, st)
	return err
}

func (s *PGStore) SetStationStatus(ctx context.Context, id uuid.UUID, status station.Status) error {
	return s.stations.SetStatus(ctx, id, status)
}

func (s *PGStore) CreateBike(ctx context.Context, b *bike.Bike) error {
	_, err := s.bikes.Insert(ctx, b)
	return err
}

func (s *PGStore) SaveBike(ctx context.Context, b *bike.Bike) error {
	return s.bikes.SaveState(ctx, b)
}

func (s *PGStore) CreateRental(ctx context.Context, r *rental.Rental) error {
	_, err := s.rentals.Start(ctx, r)
	return err
}

func (s *PGStore) CompleteRental(ctx context.Context, r *rental.Rental) error {
	if r.EndStationID == nil {
		return fmt.Errorf("rental %s has no end station", r.ID)
	}
	_, err := s.rentals.Complete(ctx, r.ID, *r.EndStationID)
	return err
}

func (s *PGStore) CreateReservation(ctx context.Context, res *reservation.Reservation) error {
	_, err := s.reservations.Create(ctx, res)
	return err
}

func (s *PGStore) SetReservationStatus(ctx context.Context, id uuid.UUID, status reservation.Status) error {
	return s.reservations.SetStatus(ctx, id, status)
}

func (s *PGStore) RentalsByUser(ctx context.Context, userID string) ([]rental.Rental, error) {
	return s.rentals.GetByUser(ctx, userID)
}

func (s *PGStore) ReservationsByUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	return s.reservations.GetByUser(ctx, userID)
}
