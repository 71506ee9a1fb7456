// Package station implements the docking station and its occupancy
// accounting. A station owns the set of bikes docked in it, bounded by its
// capacity, and every mutating operation (return, checkout, reservation)
// reports a tagged Result carrying the fresh occupancy numbers.
package station

import (
	"database/sql/driver"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/reservation"
)

type Type int

const (
	Public Type = iota
	Private
)

func (t Type) String() string {
	return [...]string{"public", "private"}[t]
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) Scan(i any) error {
	switch v := i.(type) {
	case string:
		switch v {
		case "public":
			*t = Public
			return nil
		case "private":
			*t = Private
			return nil
		}
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("invalid station type %v", i)
}

func (t Type) Value() (driver.Value, error) {
	return t.String(), nil
}

type Status string

const (
	StatusActive       Status = "active"
	StatusOutOfService Status = "out_of_service"
)

type Station struct {
	ID           uuid.UUID
	Name         string
	Address      string
	OpeningHours string `db:"opening_hours"`
	Location     pgtype.Point
	Type         Type
	Capacity     int
	Status       Status

	docked map[string]*bike.Bike
	holds  map[string]*reservation.Reservation
}

// New returns an active station with the given fixed capacity. Capacity is
// immutable after creation.
func New(name string, capacity int, typ Type) *Station {
	s := &Station{
		ID:       uuid.New(),
		Name:     name,
		Type:     typ,
		Capacity: capacity,
		Status:   StatusActive,
	}
	s.Init()
	return s
}

// Init allocates the runtime dock and hold maps. Rows scanned from the
// database arrive without them, so hydration must call Init before any
// docking happens.
func (s *Station) Init() {
	if s.docked == nil {
		s.docked = make(map[string]*bike.Bike)
	}
	if s.holds == nil {
		s.holds = make(map[string]*reservation.Reservation)
	}
}

// BikesAvailable is the number of docked bikes.
func (s *Station) BikesAvailable() int {
	return len(s.docked)
}

// FreeDocks is the remaining dock capacity.
func (s *Station) FreeDocks() int {
	return s.Capacity - len(s.docked)
}

func (s *Station) IsEmpty() bool {
	return len(s.docked) == 0
}

func (s *Station) IsFull() bool {
	return len(s.docked) >= s.Capacity
}

// Snapshot captures the station occupancy at a point in time.
type Snapshot struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Capacity       int       `json:"capacity"`
	BikesAvailable int       `json:"bikesAvailable"`
	FreeDocks      int       `json:"freeDocks"`
	OccupiedDocks  int       `json:"occupiedDocks"`
	IsEmpty        bool      `json:"isEmpty"`
	IsFull         bool      `json:"isFull"`
	Status         Status    `json:"status"`
}

func (s *Station) Snapshot() *Snapshot {
	return &Snapshot{
		ID:             s.ID,
		Name:           s.Name,
		Capacity:       s.Capacity,
		BikesAvailable: s.BikesAvailable(),
		FreeDocks:      s.FreeDocks(),
		OccupiedDocks:  len(s.docked),
		IsEmpty:        s.IsEmpty(),
		IsFull:         s.IsFull(),
		Status:         s.Status,
	}
}

// Return docks a bike. The bike comes back as available whatever trip or
// hold state it arrives in.
func (s *Station) Return(b *bike.Bike) Result {
	if s.Status == StatusOutOfService {
		return Fail(ReturnFailedStationOOS, KindInvalidState,
			fmt.Sprintf("station %s is out of service", s.Name), s.Snapshot())
	}
	if s.IsFull() {
		return Fail(ReturnFailedStationFull, KindCapacityViolation,
			fmt.Sprintf("station %s is full (%d/%d docks occupied)", s.Name, len(s.docked), s.Capacity), s.Snapshot())
	}
	if _, ok := s.docked[b.Label]; ok {
		return Fail(ReturnFailed, KindInvalidState,
			fmt.Sprintf("bike %s is already docked at %s", b.Label, s.Name), s.Snapshot())
	}

	if b.Status != bike.StatusAvailable {
		if err := b.ChangeStatus(bike.StatusAvailable); err != nil {
			return Fail(ReturnFailed, KindInvalidState, err.Error(), s.Snapshot())
		}
	}
	b.StationID = &s.ID
	s.docked[b.Label] = b

	return Result{
		Success: true,
		Op:      ReturnSuccess,
		Message: fmt.Sprintf("bike %s returned to %s", b.Label, s.Name),
		Station: s.Snapshot(),
		Bike:    b,
	}
}

// Checkout undocks a bike. With a label it takes that specific bike; without
// one it picks uniformly at random among the available docked bikes,
// preferring the rider's own held bike when they have an active hold here.
// A bike under someone else's unexpired hold cannot be taken.
func (s *Station) Checkout(label, userID string, now time.Time) Result {
	if s.Status == StatusOutOfService {
		return Fail(CheckoutFailedStationOOS, KindInvalidState,
			fmt.Sprintf("station %s is out of service", s.Name), s.Snapshot())
	}
	if s.IsEmpty() {
		return Fail(CheckoutFailedStationEmpty, KindCapacityViolation,
			fmt.Sprintf("station %s has no bikes", s.Name), s.Snapshot())
	}

	var b *bike.Bike
	if label != "" {
		docked, ok := s.docked[label]
		if !ok {
			return Fail(CheckoutFailedNoBike, KindNotFound,
				fmt.Sprintf("bike %s is not docked at %s", label, s.Name), s.Snapshot())
		}
		b = docked
	} else {
		b = s.pickAvailable(userID, now)
		if b == nil {
			return Fail(CheckoutFailedNoBike, KindNotFound,
				fmt.Sprintf("no available bikes at %s", s.Name), s.Snapshot())
		}
	}

	var redeemed *reservation.Reservation
	switch b.Status {
	case bike.StatusAvailable:
	case bike.StatusReserved:
		switch {
		case b.HeldFor(userID, now):
			redeemed = s.holds[userID]
		case b.HoldExpired(now):
			// The sweeper has not caught this hold yet; release it on the way out.
			if res, ok := s.holds[*b.HeldBy]; ok && res.BikeLabel == b.Label {
				res.Expire()
			}
		default:
			return Fail(CheckoutFailed, KindOwnershipViolation,
				fmt.Sprintf("bike %s is reserved by another rider", b.Label), s.Snapshot())
		}
	default:
		return Fail(CheckoutFailed, KindInvalidState,
			fmt.Sprintf("bike %s is in %s and cannot be checked out", b.Label, b.Status), s.Snapshot())
	}

	if err := b.ChangeStatus(bike.StatusOnTrip); err != nil {
		return Fail(CheckoutFailed, KindInvalidState, err.Error(), s.Snapshot())
	}
	b.HeldBy = nil
	b.HoldExpiresAt = nil
	b.StationID = nil
	delete(s.docked, b.Label)

	msg := fmt.Sprintf("bike %s checked out from %s", b.Label, s.Name)
	if redeemed != nil {
		redeemed.Use()
		msg = fmt.Sprintf("bike %s checked out from %s, reservation redeemed", b.Label, s.Name)
	}

	return Result{
		Success:     true,
		Op:          CheckoutSuccess,
		Message:     msg,
		Station:     s.Snapshot(),
		Bike:        b,
		Reservation: redeemed,
	}
}

// pickAvailable selects a bike for an unlabelled checkout. The rider's own
// held bike wins when the hold is active; otherwise a uniform random pick
// among docked bikes in the available state.
func (s *Station) pickAvailable(userID string, now time.Time) *bike.Bike {
	if res, ok := s.holds[userID]; ok && res.ActiveAt(now) {
		if held, ok := s.docked[res.BikeLabel]; ok {
			return held
		}
	}

	var candidates []*bike.Bike
	for _, b := range s.docked {
		if b.Status == bike.StatusAvailable {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.IntN(len(candidates))]
}

// CreateReservation places a soft hold on a random available bike for the
// rider. The bike stays docked until checkout.
func (s *Station) CreateReservation(userID string, holdFor time.Duration, now time.Time) Result {
	if s.Status == StatusOutOfService {
		return Fail(ReservationFailed, KindInvalidState,
			fmt.Sprintf("station %s is out of service", s.Name), s.Snapshot())
	}
	if s.IsEmpty() {
		return Fail(ReservationFailed, KindCapacityViolation,
			fmt.Sprintf("station %s has no bikes", s.Name), s.Snapshot())
	}
	if res, ok := s.holds[userID]; ok && res.ActiveAt(now) {
		return Fail(ReservationFailed, KindInvalidState,
			fmt.Sprintf("rider already holds a reservation at %s", s.Name), s.Snapshot())
	}

	var candidates []*bike.Bike
	for _, b := range s.docked {
		if b.Status == bike.StatusAvailable {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return Fail(ReservationFailed, KindCapacityViolation,
			fmt.Sprintf("no available bikes to reserve at %s", s.Name), s.Snapshot())
	}

	b := candidates[rand.IntN(len(candidates))]
	if err := b.Reserve(userID, holdFor); err != nil {
		return Fail(ReservationFailed, KindInvalidState, err.Error(), s.Snapshot())
	}

	res := reservation.New(userID, b.Label, s.ID, now, holdFor)
	s.holds[userID] = res

	return Result{
		Success:     true,
		Op:          ReservationCreated,
		Message:     fmt.Sprintf("bike %s held at %s until %s", b.Label, s.Name, res.ExpiresAt.Format(time.RFC3339)),
		Station:     s.Snapshot(),
		Bike:        b,
		Reservation: res,
	}
}

// CancelReservation withdraws the rider's active hold and releases the bike.
func (s *Station) CancelReservation(userID string, now time.Time) Result {
	res, ok := s.holds[userID]
	if !ok || !res.ActiveAt(now) {
		return Fail(ReservationFailed, KindNotFound,
			fmt.Sprintf("no active reservation at %s", s.Name), s.Snapshot())
	}

	res.Cancel()
	b := s.releaseHeldBike(res)

	return Result{
		Success:     true,
		Op:          ReservationCancelled,
		Message:     fmt.Sprintf("reservation on bike %s cancelled", res.BikeLabel),
		Station:     s.Snapshot(),
		Bike:        b,
		Reservation: res,
	}
}

// ExpireReservations marks every hold past its expiry as expired and releases
// the bikes. Lapsed holds are kept, not deleted. Returns one result per
// expired hold.
func (s *Station) ExpireReservations(now time.Time) []Result {
	var expired []Result
	for _, res := range s.holds {
		if res.Status != reservation.StatusActive || !res.ExpiresAt.Before(now) {
			continue
		}
		res.Expire()
		b := s.releaseHeldBike(res)
		expired = append(expired, Result{
			Success:     true,
			Op:          ReservationExpired,
			Message:     fmt.Sprintf("reservation on bike %s expired", res.BikeLabel),
			Station:     s.Snapshot(),
			Bike:        b,
			Reservation: res,
		})
	}
	return expired
}

// releaseHeldBike returns a hold's bike to available if it is still docked
// here under the hold.
func (s *Station) releaseHeldBike(res *reservation.Reservation) *bike.Bike {
	b, ok := s.docked[res.BikeLabel]
	if !ok || b.Status != bike.StatusReserved {
		return nil
	}
	if b.HeldBy == nil || *b.HeldBy != res.UserID {
		return nil
	}
	if err := b.ReleaseHold(); err != nil {
		return nil
	}
	return b
}

// ActiveHold is the rider's unexpired hold at this station, or nil.
func (s *Station) ActiveHold(userID string, now time.Time) *reservation.Reservation {
	res, ok := s.holds[userID]
	if !ok || !res.ActiveAt(now) {
		return nil
	}
	return res
}

// Docked looks up a bike in the docked set.
func (s *Station) Docked(label string) (*bike.Bike, bool) {
	b, ok := s.docked[label]
	return b, ok
}

// DockedBikes lists the docked bikes in no particular order.
func (s *Station) DockedBikes() []*bike.Bike {
	bikes := make([]*bike.Bike, 0, len(s.docked))
	for _, b := range s.docked {
		bikes = append(bikes, b)
	}
	return bikes
}

// Dock places a bike in the docked set without the return-operation guards.
// It exists for rebuilding state from storage; the normal flow goes through
// Return.
func (s *Station) Dock(b *bike.Bike) {
	b.StationID = &s.ID
	s.docked[b.Label] = b
}

// AttachHold installs a hold record without the reservation guards. It exists
// for rebuilding state from storage.
func (s *Station) AttachHold(res *reservation.Reservation) {
	s.holds[res.UserID] = res
}

// ValidateState is a read-only consistency check over the occupancy
// accounting. It reports every violation found and mutates nothing, so
// calling it twice in a row yields identical results.
func (s *Station) ValidateState() []string {
	var violations []string

	if s.Capacity < 0 {
		violations = append(violations, fmt.Sprintf("station %s: negative capacity %d", s.Name, s.Capacity))
	}
	if s.BikesAvailable() < 0 {
		violations = append(violations, fmt.Sprintf("station %s: negative bikes available %d", s.Name, s.BikesAvailable()))
	}
	if len(s.docked) > s.Capacity {
		violations = append(violations, fmt.Sprintf("station %s: %d bikes docked exceeds capacity %d", s.Name, len(s.docked), s.Capacity))
	}
	if s.FreeDocks() != s.Capacity-s.BikesAvailable() {
		violations = append(violations, fmt.Sprintf("station %s: free docks %d != capacity %d - bikes available %d",
			s.Name, s.FreeDocks(), s.Capacity, s.BikesAvailable()))
	}

	for label, b := range s.docked {
		if b.Status == bike.StatusOnTrip {
			violations = append(violations, fmt.Sprintf("station %s: docked bike %s has status on_trip", s.Name, label))
		}
		if b.StationID == nil || *b.StationID != s.ID {
			violations = append(violations, fmt.Sprintf("station %s: docked bike %s does not point back at the station", s.Name, label))
		}
		if b.Status == bike.StatusReserved {
			if b.HeldBy == nil {
				violations = append(violations, fmt.Sprintf("station %s: reserved bike %s has no holder", s.Name, label))
				continue
			}
			res, ok := s.holds[*b.HeldBy]
			if !ok || res.BikeLabel != label || res.Status != reservation.StatusActive {
				violations = append(violations, fmt.Sprintf("station %s: reserved bike %s has no matching active hold", s.Name, label))
			}
		}
	}

	for userID, res := range s.holds {
		if res.Status != reservation.StatusActive {
			continue
		}
		if _, ok := s.docked[res.BikeLabel]; !ok {
			violations = append(violations, fmt.Sprintf("station %s: active hold by %s on bike %s which is not docked", s.Name, userID, res.BikeLabel))
		}
	}

	return violations
}
