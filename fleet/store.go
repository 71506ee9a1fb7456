package fleet

import (
	"context"

	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/rental"
	"github.com/semanticallynull/dockshare-backend/reservation"
	"github.com/semanticallynull/dockshare-backend/station"
)

// Store is the persistence boundary behind the Manager. The in-memory fleet
// is the system of record during a process lifetime; the store is written
// behind every mutation and read once at boot to rebuild the world.
type Store interface {
	LoadStations(ctx context.Context) ([]station.Station, error)
	LoadBikes(ctx context.Context) ([]bike.Bike, error)
	LoadActiveRentals(ctx context.Context) ([]rental.Rental, error)
	LoadActiveReservations(ctx context.Context) ([]reservation.Reservation, error)

	CreateStation(ctx context.Context, s *station.Station) error
	SetStationStatus(ctx context.Context, id uuid.UUID, status station.Status) error
	CreateBike(ctx context.Context, b *bike.Bike) error
	SaveBike(ctx context.Context, b *bike.Bike) error
	CreateRental(ctx context.Context, r *rental.Rental) error
	CompleteRental(ctx context.Context, r *rental.Rental) error
	CreateReservation(ctx context.Context, r *reservation.Reservation) error
	SetReservationStatus(ctx context.Context, id uuid.UUID, status reservation.Status) error

	RentalsByUser(ctx context.Context, userID string) ([]rental.Rental, error)
	ReservationsByUser(ctx context.Context, userID string) ([]reservation.Reservation, error)
}
