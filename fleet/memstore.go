package fleet

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/rental"
	"github.com/semanticallynull/dockshare-backend/reservation"
	"github.com/semanticallynull/dockshare-backend/station"
)

// MemStore is an in-memory Store for tests and local runs without a
// database. Rows keep only the persisted columns, like their PostgreSQL
// counterparts.
type MemStore struct {
	mu           sync.Mutex
	stations     map[uuid.UUID]station.Station
	bikes        map[string]bike.Bike
	rentals      map[uuid.UUID]rental.Rental
	reservations map[uuid.UUID]reservation.Reservation
}

func NewMemStore() *MemStore {
	return &MemStore{
		stations:     make(map[uuid.UUID]station.Station),
		bikes:        make(map[string]bike.Bike),
		rentals:      make(map[uuid.UUID]rental.Rental),
		reservations: make(map[uuid.UUID]reservation.Reservation),
	}
}

func (s *MemStore) LoadStations(ctx context.Context) ([]station.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stations := make([]station.Station, 0, len(s.stations))
	for _, st := range s.stations {
		stations = append(stations, st)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].Name < stations[j].Name })
	return stations, nil
}

func (s *MemStore) LoadBikes(ctx context.Context) ([]bike.Bike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bikes := make([]bike.Bike, 0, len(s.bikes))
	for _, b := range s.bikes {
		bikes = append(bikes, b)
	}
	sort.Slice(bikes, func(i, j int) bool { return bikes[i].Label < bikes[j].Label })
	return bikes, nil
}

func (s *MemStore) LoadActiveRentals(ctx context.Context) ([]rental.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rentals []rental.Rental
	for _, r := range s.rentals {
		if !r.EndedAt.Valid {
			rentals = append(rentals, r)
		}
	}
	return rentals, nil
}

func (s *MemStore) LoadActiveReservations(ctx context.Context) ([]reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reservations []reservation.Reservation
	for _, r := range s.reservations {
		if r.Status == reservation.StatusActive {
			reservations = append(reservations, r)
		}
	}
	return reservations, nil
}

func (s *MemStore) CreateStation(ctx context.Context, st *station.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stations[st.ID] = station.Station{
		ID:           st.ID,
		Name:         st.Name,
		Address:      st.Address,
		OpeningHours: st.OpeningHours,
		Location:     st.Location,
		Type:         st.Type,
		Capacity:     st.Capacity,
		Status:       st.Status,
	}
	return nil
}

func (s *MemStore) SetStationStatus(ctx context.Context, id uuid.UUID, status station.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stations[id]
	if !ok {
		return station.ErrNotFound
	}
	st.Status = status
	s.stations[id] = st
	return nil
}

func (s *MemStore) CreateBike(ctx context.Context, b *bike.Bike) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bikes[b.Label] = *b
	return nil
}

func (s *MemStore) SaveBike(ctx context.Context, b *bike.Bike) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bikes[b.Label]; !ok {
		return bike.ErrNotFound
	}
	s.bikes[b.Label] = *b
	return nil
}

func (s *MemStore) CreateRental(ctx context.Context, r *rental.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rentals[r.ID] = *r
	return nil
}

func (s *MemStore) CompleteRental(ctx context.Context, r *rental.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rentals[r.ID]; !ok {
		return rental.ErrNotFound
	}
	s.rentals[r.ID] = *r
	return nil
}

func (s *MemStore) CreateReservation(ctx context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reservations[r.ID] = *r
	return nil
}

func (s *MemStore) SetReservationStatus(ctx context.Context, id uuid.UUID, status reservation.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return reservation.ErrNotFound
	}
	r.Status = status
	s.reservations[id] = r
	return nil
}

func (s *MemStore) RentalsByUser(ctx context.Context, userID string) ([]rental.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rentals []rental.Rental
	for _, r := range s.rentals {
		if r.UserID == userID {
			rentals = append(rentals, r)
		}
	}
	sort.Slice(rentals, func(i, j int) bool { return rentals[i].StartedAt.After(rentals[j].StartedAt) })
	return rentals, nil
}

func (s *MemStore) ReservationsByUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reservations []reservation.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID {
			reservations = append(reservations, r)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].CreatedAt.After(reservations[j].CreatedAt) })
	return reservations, nil
}
