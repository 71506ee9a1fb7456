// Package fleet coordinates every station and bike in the share system. The
// Manager is the single writer over the in-memory fleet: each operation
// mutates the world under one mutex, then persists write-behind through the
// Store. A persistence failure is logged and never fails the operation that
// already happened, matching the split tolerated by the rest of the system.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/rental"
	"github.com/semanticallynull/dockshare-backend/reservation"
	"github.com/semanticallynull/dockshare-backend/station"
)

// Manager-level operation tags, extending the station set.
const (
	StationNotFound          station.Op = "STATION_NOT_FOUND"
	BikeNotFound             station.Op = "BIKE_NOT_FOUND"
	RentFailed               station.Op = "RENT_FAILED"
	ManualMoveSuccess        station.Op = "MANUAL_MOVE_SUCCESS"
	ManualMoveFailed         station.Op = "MANUAL_MOVE_FAILED"
	ManualMoveRollbackFailed station.Op = "MANUAL_MOVE_ROLLBACK_FAILED"
)

var (
	ErrDuplicateLabel      = errors.New("bike label already registered")
	ErrCapacityOutOfBounds = errors.New("station capacity out of bounds")
	ErrDockRejected        = errors.New("bike could not be docked")
)

// Rewarder is the loyalty side channel invoked on returns that help
// rebalance the fleet. Errors from it are swallowed and logged, never
// surfaced as a rental failure.
type Rewarder interface {
	Award(ctx context.Context, userID string, amountCents int, reason string, stationID uuid.UUID) (int, error)
}

// Notifier receives a fresh snapshot after every occupancy change.
type Notifier interface {
	PublishStationUpdate(snap *station.Snapshot)
}

// SnapshotCache is invalidated after every occupancy change.
type SnapshotCache interface {
	Invalidate(ctx context.Context) error
}

type Config struct {
	// HoldFor is how long a reservation keeps a bike before lapsing.
	HoldFor time.Duration
	// RewardThreshold is the occupancy fraction below which a return earns
	// flex dollars. Zero disables rewards.
	RewardThreshold float64
	// RewardAmountCents is the base payout before tier multipliers.
	RewardAmountCents int
	// MinCapacity and MaxCapacity bound new stations.
	MinCapacity int
	MaxCapacity int
}

type Manager struct {
	mu       sync.Mutex
	stations map[uuid.UUID]*station.Station
	bikes    map[string]*bike.Bike
	rentals  map[string]*rental.Rental

	store    Store
	rewards  Rewarder
	notifier Notifier
	cache    SnapshotCache
	logger   *slog.Logger
	cfg      Config
}

// New builds an empty Manager. rewards, notifier and cache may be nil.
func New(store Store, rewards Rewarder, notifier Notifier, cache SnapshotCache, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		stations: make(map[uuid.UUID]*station.Station),
		bikes:    make(map[string]*bike.Bike),
		rentals:  make(map[string]*rental.Rental),
		store:    store,
		rewards:  rewards,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
	}
}

// Load rebuilds the in-memory fleet from the store: stations, docked bikes,
// open rentals and active holds.
func (m *Manager) Load(ctx context.Context) error {
	stations, err := m.store.LoadStations(ctx)
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}
	bikes, err := m.store.LoadBikes(ctx)
	if err != nil {
		return fmt.Errorf("load bikes: %w", err)
	}
	rentals, err := m.store.LoadActiveRentals(ctx)
	if err != nil {
		return fmt.Errorf("load rentals: %w", err)
	}
	reservations, err := m.store.LoadActiveReservations(ctx)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range stations {
		st := stations[i]
		st.Init()
		m.stations[st.ID] = &st
	}
	for i := range bikes {
		b := bikes[i]
		m.bikes[b.Label] = &b
		if b.StationID != nil {
			if st, ok := m.stations[*b.StationID]; ok {
				st.Dock(&b)
			}
		}
	}
	for i := range rentals {
		r := rentals[i]
		m.rentals[r.UserID] = &r
	}
	for i := range reservations {
		res := reservations[i]
		if st, ok := m.stations[res.StationID]; ok {
			st.AttachHold(&res)
		}
	}

	m.logger.InfoContext(ctx, "fleet loaded",
		slog.Int("stations", len(m.stations)),
		slog.Int("bikes", len(m.bikes)),
		slog.Int("active_rentals", len(m.rentals)),
		slog.Int("active_reservations", len(reservations)),
	)
	return nil
}

// Rent checks a bike out for the rider and opens a rental. With an empty
// label the station picks an available bike. The Manager is the authority on
// the one-active-rental-per-rider rule.
func (m *Manager) Rent(ctx context.Context, userID string, stationID uuid.UUID, label string) station.Result {
	res, eff := m.rentLocked(userID, stationID, label, time.Now())
	m.flush(ctx, eff)
	m.record(res)
	if res.Reservation != nil && res.Reservation.Status == reservation.StatusUsed {
		fleetOperationsTotal.WithLabelValues(string(station.ReservationUsed)).Inc()
	}
	return res
}

func (m *Manager) rentLocked(userID string, stationID uuid.UUID, label string, now time.Time) (station.Result, *effects) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eff := &effects{}

	st, ok := m.stations[stationID]
	if !ok {
		return station.Fail(StationNotFound, station.KindNotFound,
			fmt.Sprintf("station %s not found", stationID), nil), eff
	}

	m.expireStationLocked(st, now, eff)

	if _, open := m.rentals[userID]; open {
		return station.Fail(RentFailed, station.KindInvalidState,
			"rider already has an active rental", st.Snapshot()), eff
	}

	res := st.Checkout(label, userID, now)
	if !res.Success {
		return res, eff
	}

	r := rental.New(userID, res.Bike.Label, st.ID, now)
	m.rentals[userID] = r
	res.Rental = r

	eff.bikes = append(eff.bikes, res.Bike)
	eff.newRental = r
	if res.Reservation != nil {
		eff.holds = append(eff.holds, res.Reservation)
	}
	eff.snapshots = append(eff.snapshots, res.Station)
	eff.rentalCount = intp(len(m.rentals))
	return res, eff
}

// Return docks the rider's rented bike at a station and completes the
// rental. Returns that leave the station under the configured occupancy
// threshold earn the rider flex dollars on the side.
func (m *Manager) Return(ctx context.Context, userID, label string, stationID uuid.UUID) station.Result {
	res, eff := m.returnLocked(userID, label, stationID, time.Now())
	m.flush(ctx, eff)
	m.record(res)
	if eff.reward != nil {
		m.award(ctx, eff.reward)
	}
	return res
}

func (m *Manager) returnLocked(userID, label string, stationID uuid.UUID, now time.Time) (station.Result, *effects) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eff := &effects{}

	r, open := m.rentals[userID]
	if !open {
		return station.Fail(station.ReturnFailed, station.KindOwnershipViolation,
			"no active rental for rider", nil), eff
	}
	if r.BikeLabel != label {
		return station.Fail(station.ReturnFailed, station.KindOwnershipViolation,
			fmt.Sprintf("active rental is for bike %s, not %s", r.BikeLabel, label), nil), eff
	}

	st, ok := m.stations[stationID]
	if !ok {
		return station.Fail(StationNotFound, station.KindNotFound,
			fmt.Sprintf("station %s not found", stationID), nil), eff
	}

	m.expireStationLocked(st, now, eff)

	b, ok := m.bikes[label]
	if !ok {
		return station.Fail(BikeNotFound, station.KindNotFound,
			fmt.Sprintf("bike %s not found", label), nil), eff
	}

	res := st.Return(b)
	if !res.Success {
		return res, eff
	}

	r.Complete(st.ID, now)
	delete(m.rentals, userID)
	res.Rental = r

	eff.bikes = append(eff.bikes, b)
	eff.doneRental = r
	eff.snapshots = append(eff.snapshots, res.Station)
	eff.rentalCount = intp(len(m.rentals))

	if m.rewards != nil && m.cfg.RewardThreshold > 0 && st.Capacity > 0 {
		occupancy := float64(st.BikesAvailable()) / float64(st.Capacity)
		if occupancy < m.cfg.RewardThreshold {
			eff.reward = &rewardIntent{
				userID:    userID,
				amount:    m.cfg.RewardAmountCents,
				reason:    fmt.Sprintf("return to under-stocked station %s", st.Name),
				stationID: st.ID,
			}
		}
	}

	return res, eff
}

// Reserve places a soft hold for the rider at a station. One active hold per
// rider across the whole system.
func (m *Manager) Reserve(ctx context.Context, userID string, stationID uuid.UUID) station.Result {
	res, eff := m.reserveLocked(userID, stationID, time.Now())
	m.flush(ctx, eff)
	m.record(res)
	return res
}

func (m *Manager) reserveLocked(userID string, stationID uuid.UUID, now time.Time) (station.Result, *effects) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eff := &effects{}

	st, ok := m.stations[stationID]
	if !ok {
		return station.Fail(StationNotFound, station.KindNotFound,
			fmt.Sprintf("station %s not found", stationID), nil), eff
	}

	m.expireStationLocked(st, now, eff)

	for _, other := range m.stations {
		if hold := other.ActiveHold(userID, now); hold != nil {
			return station.Fail(station.ReservationFailed, station.KindInvalidState,
				fmt.Sprintf("rider already holds a reservation at %s", other.Name), st.Snapshot()), eff
		}
	}

	res := st.CreateReservation(userID, m.cfg.HoldFor, now)
	if !res.Success {
		return res, eff
	}

	eff.bikes = append(eff.bikes, res.Bike)
	eff.newHold = res.Reservation
	eff.snapshots = append(eff.snapshots, res.Station)
	return res, eff
}

// CancelReservation withdraws the rider's active hold, wherever it is.
func (m *Manager) CancelReservation(ctx context.Context, userID string) station.Result {
	res, eff := m.cancelLocked(userID, time.Now())
	m.flush(ctx, eff)
	m.record(res)
	return res
}

func (m *Manager) cancelLocked(userID string, now time.Time) (station.Result, *effects) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eff := &effects{}

	for _, st := range m.stations {
		if st.ActiveHold(userID, now) == nil {
			continue
		}
		res := st.CancelReservation(userID, now)
		if res.Success {
			if res.Bike != nil {
				eff.bikes = append(eff.bikes, res.Bike)
			}
			eff.holds = append(eff.holds, res.Reservation)
			eff.snapshots = append(eff.snapshots, res.Station)
		}
		return res, eff
	}

	return station.Fail(station.ReservationFailed, station.KindNotFound,
		"no active reservation for rider", nil), eff
}

// MoveResult is the manual-move outcome with both ends of the relocation.
type MoveResult struct {
	station.Result
	Origin      *station.Snapshot
	Destination *station.Snapshot
}

// ManualMove relocates a bike between stations as a checkout at the origin
// followed by a return at the destination. If the destination refuses the
// bike, a compensating return restores it to the origin. If that compensation
// also fails the bike is tracked by neither station, and the result says so
// as a distinct, higher-severity outcome rather than a normal rejection.
func (m *Manager) ManualMove(ctx context.Context, label string, fromID, toID uuid.UUID, operatorID string) MoveResult {
	res, eff := m.moveLocked(label, fromID, toID, operatorID, time.Now())
	m.flush(ctx, eff)
	m.record(res.Result)
	if res.Op == ManualMoveRollbackFailed {
		fleetMoveRollbackFailures.Inc()
		m.logger.ErrorContext(ctx, "manual move rollback failed, bike stranded",
			slog.String("bike", label),
			slog.String("message", res.Message),
		)
	}
	return res
}

func (m *Manager) moveLocked(label string, fromID, toID uuid.UUID, operatorID string, now time.Time) (MoveResult, *effects) {
	m.mu.Lock()
	defer m.mu.Unlock()

	eff := &effects{}

	from, ok := m.stations[fromID]
	if !ok {
		return MoveResult{Result: station.Fail(StationNotFound, station.KindNotFound,
			fmt.Sprintf("origin station %s not found", fromID), nil)}, eff
	}
	to, ok := m.stations[toID]
	if !ok {
		return MoveResult{Result: station.Fail(StationNotFound, station.KindNotFound,
			fmt.Sprintf("destination station %s not found", toID), nil), Origin: from.Snapshot()}, eff
	}
	if _, ok := m.bikes[label]; !ok {
		return MoveResult{Result: station.Fail(BikeNotFound, station.KindNotFound,
			fmt.Sprintf("bike %s not found", label), nil), Origin: from.Snapshot(), Destination: to.Snapshot()}, eff
	}

	m.expireStationLocked(from, now, eff)
	m.expireStationLocked(to, now, eff)

	out := from.Checkout(label, operatorID, now)
	if !out.Success {
		return MoveResult{
			Result:      station.Fail(ManualMoveFailed, out.Kind, fmt.Sprintf("checkout from %s failed: %s", from.Name, out.Message), out.Station),
			Origin:      out.Station,
			Destination: to.Snapshot(),
		}, eff
	}
	b := out.Bike

	in := to.Return(b)
	if in.Success {
		eff.bikes = append(eff.bikes, b)
		eff.snapshots = append(eff.snapshots, from.Snapshot(), in.Station)
		return MoveResult{
			Result: station.Result{
				Success: true,
				Op:      ManualMoveSuccess,
				Message: fmt.Sprintf("bike %s moved from %s to %s", label, from.Name, to.Name),
				Station: in.Station,
				Bike:    b,
			},
			Origin:      from.Snapshot(),
			Destination: in.Station,
		}, eff
	}

	rb := from.Return(b)
	if rb.Success {
		eff.bikes = append(eff.bikes, b)
		eff.snapshots = append(eff.snapshots, from.Snapshot(), to.Snapshot())
		return MoveResult{
			Result: station.Fail(ManualMoveFailed, in.Kind,
				fmt.Sprintf("%s; rolled back, bike %s re-docked at %s", in.Message, label, from.Name), from.Snapshot()),
			Origin:      from.Snapshot(),
			Destination: in.Station,
		}, eff
	}

	// The bike is now tracked by neither station. Persist what we know and
	// surface the loss loudly.
	eff.bikes = append(eff.bikes, b)
	eff.snapshots = append(eff.snapshots, from.Snapshot(), to.Snapshot())
	return MoveResult{
		Result: station.Fail(ManualMoveRollbackFailed, station.KindMoveRollbackFailed,
			fmt.Sprintf("%s; rollback also failed: %s; bike %s is tracked by neither station", in.Message, rb.Message, label),
			from.Snapshot()),
		Origin:      from.Snapshot(),
		Destination: to.Snapshot(),
	}, eff
}

// ExpireReservations sweeps every station for lapsed holds. The sweeper calls
// this on a ticker; operations also expire holds lazily on the stations they
// touch. Returns the number of holds expired.
func (m *Manager) ExpireReservations(ctx context.Context, now time.Time) int {
	eff := &effects{}

	m.mu.Lock()
	for _, st := range m.stations {
		m.expireStationLocked(st, now, eff)
	}
	m.mu.Unlock()

	m.flush(ctx, eff)
	return len(eff.expired)
}

// expireStationLocked runs the lazy expiry sweep on one station, collecting
// the lapsed holds into the effect set. Callers hold the mutex.
func (m *Manager) expireStationLocked(st *station.Station, now time.Time, eff *effects) {
	results := st.ExpireReservations(now)
	for _, r := range results {
		eff.expired = append(eff.expired, r)
		eff.holds = append(eff.holds, r.Reservation)
		if r.Bike != nil {
			eff.bikes = append(eff.bikes, r.Bike)
		}
	}
	if len(results) > 0 {
		eff.snapshots = append(eff.snapshots, st.Snapshot())
	}
}

// SystemReport is the outcome of the fleet-wide self-test.
type SystemReport struct {
	TotalBikes    int                    `json:"totalBikes"`
	DockedBikes   int                    `json:"dockedBikes"`
	ActiveRentals int                    `json:"activeRentals"`
	Consistent    bool                   `json:"consistent"`
	Global        []string               `json:"global,omitempty"`
	Stations      map[uuid.UUID][]string `json:"stations,omitempty"`
}

// ValidateSystemState cross-checks that every tracked bike is either docked
// somewhere or out on an active rental, and runs each station's own
// consistency check. Read-only; intended as a self-test, not called
// automatically.
func (m *Manager) ValidateSystemState() SystemReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := SystemReport{
		TotalBikes:    len(m.bikes),
		ActiveRentals: len(m.rentals),
		Stations:      make(map[uuid.UUID][]string),
	}

	for _, st := range m.stations {
		report.DockedBikes += st.BikesAvailable()
		if violations := st.ValidateState(); len(violations) > 0 {
			report.Stations[st.ID] = violations
		}
	}

	if report.TotalBikes != report.DockedBikes+report.ActiveRentals {
		report.Global = append(report.Global, fmt.Sprintf(
			"bike count mismatch: %d tracked, %d docked + %d on active rentals",
			report.TotalBikes, report.DockedBikes, report.ActiveRentals))
	}

	report.Consistent = len(report.Global) == 0 && len(report.Stations) == 0
	return report
}

// CreateStation registers a new empty station. Capacity must fall within the
// configured bounds.
func (m *Manager) CreateStation(ctx context.Context, name string, capacity int, typ station.Type) (*station.Station, error) {
	if capacity < m.cfg.MinCapacity || capacity > m.cfg.MaxCapacity {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrCapacityOutOfBounds, capacity, m.cfg.MinCapacity, m.cfg.MaxCapacity)
	}

	st := station.New(name, capacity, typ)

	m.mu.Lock()
	m.stations[st.ID] = st
	m.mu.Unlock()

	if err := m.store.CreateStation(ctx, st); err != nil {
		m.logger.WarnContext(ctx, "failed to persist station", slog.String("station", name), slog.Any("error", err))
	}
	m.invalidate(ctx)
	return st, nil
}

// SetStationStatus flips a station between active and out_of_service.
func (m *Manager) SetStationStatus(ctx context.Context, id uuid.UUID, status station.Status) (*station.Station, error) {
	m.mu.Lock()
	st, ok := m.stations[id]
	if ok {
		st.Status = status
	}
	m.mu.Unlock()

	if !ok {
		return nil, station.ErrNotFound
	}

	if err := m.store.SetStationStatus(ctx, id, status); err != nil {
		m.logger.WarnContext(ctx, "failed to persist station status", slog.String("station", st.Name), slog.Any("error", err))
	}
	m.invalidate(ctx)
	m.publish(st.Snapshot())
	return st, nil
}

// RegisterBike adds a bike to the fleet, docked at a station. Every tracked
// bike is either docked or out on a rental, so a bike enters circulation at
// a dock.
func (m *Manager) RegisterBike(ctx context.Context, label string, typ bike.Type, stationID uuid.UUID) (*bike.Bike, error) {
	b := bike.New(label, typ)

	m.mu.Lock()
	if _, exists := m.bikes[label]; exists {
		m.mu.Unlock()
		return nil, ErrDuplicateLabel
	}
	st, ok := m.stations[stationID]
	if !ok {
		m.mu.Unlock()
		return nil, station.ErrNotFound
	}
	res := st.Return(b)
	if !res.Success {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDockRejected, res.Message)
	}
	m.bikes[label] = b
	snap := res.Station
	m.mu.Unlock()

	if err := m.store.CreateBike(ctx, b); err != nil {
		m.logger.WarnContext(ctx, "failed to persist bike", slog.String("bike", label), slog.Any("error", err))
	}
	m.invalidate(ctx)
	m.publish(snap)
	return b, nil
}

// Snapshots lists every station's occupancy, sorted by name.
func (m *Manager) Snapshots() []station.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := make([]station.Snapshot, 0, len(m.stations))
	for _, st := range m.stations {
		snaps = append(snaps, *st.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// StationDetail is one station's occupancy plus its docked bikes.
func (m *Manager) StationDetail(id uuid.UUID) (*station.Snapshot, []bike.Bike, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stations[id]
	if !ok {
		return nil, nil, station.ErrNotFound
	}

	docked := st.DockedBikes()
	bikes := make([]bike.Bike, 0, len(docked))
	for _, b := range docked {
		c := *b
		c.StationName = &st.Name
		bikes = append(bikes, c)
	}
	sort.Slice(bikes, func(i, j int) bool { return bikes[i].Label < bikes[j].Label })
	return st.Snapshot(), bikes, nil
}

// Bikes lists every bike in the fleet, sorted by label, with station names
// filled in for docked ones.
func (m *Manager) Bikes() []bike.Bike {
	m.mu.Lock()
	defer m.mu.Unlock()

	bikes := make([]bike.Bike, 0, len(m.bikes))
	for _, b := range m.bikes {
		c := *b
		if b.StationID != nil {
			if st, ok := m.stations[*b.StationID]; ok {
				c.StationName = &st.Name
			}
		}
		bikes = append(bikes, c)
	}
	sort.Slice(bikes, func(i, j int) bool { return bikes[i].Label < bikes[j].Label })
	return bikes
}

// Bike looks up one bike by label.
func (m *Manager) Bike(label string) (bike.Bike, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bikes[label]
	if !ok {
		return bike.Bike{}, false
	}
	c := *b
	if b.StationID != nil {
		if st, ok := m.stations[*b.StationID]; ok {
			c.StationName = &st.Name
		}
	}
	return c, true
}

// CurrentRental is the rider's open rental, if any.
func (m *Manager) CurrentRental(userID string) (rental.Rental, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rentals[userID]
	if !ok {
		return rental.Rental{}, false
	}
	return *r, true
}

// CurrentReservation is the rider's active hold, if any.
func (m *Manager) CurrentReservation(userID string, now time.Time) (reservation.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.stations {
		if hold := st.ActiveHold(userID, now); hold != nil {
			return *hold, true
		}
	}
	return reservation.Reservation{}, false
}

type rewardIntent struct {
	userID    string
	amount    int
	reason    string
	stationID uuid.UUID
}

// effects is everything a locked mutation wants done once the mutex is
// released: rows to persist, snapshots to broadcast, the reward to pay.
type effects struct {
	bikes       []*bike.Bike
	newRental   *rental.Rental
	doneRental  *rental.Rental
	newHold     *reservation.Reservation
	holds       []*reservation.Reservation
	expired     []station.Result
	snapshots   []*station.Snapshot
	reward      *rewardIntent
	rentalCount *int
}

func intp(i int) *int { return &i }

// flush persists and broadcasts an effect set. Store failures are logged,
// never propagated: the in-memory mutation already happened.
func (m *Manager) flush(ctx context.Context, eff *effects) {
	for _, r := range eff.expired {
		m.record(r)
		m.logger.InfoContext(ctx, "reservation expired",
			slog.String("op", string(r.Op)),
			slog.String("bike", r.Reservation.BikeLabel),
			slog.String("user", r.Reservation.UserID),
		)
	}

	if eff.newRental != nil {
		if err := m.store.CreateRental(ctx, eff.newRental); err != nil {
			if user, ok := rental.UserFromRentalInProgressError(err); ok {
				m.logger.ErrorContext(ctx, "open rental already on record, memory and store disagree",
					slog.String("user", user))
			} else {
				m.logger.WarnContext(ctx, "failed to persist rental", slog.Any("error", err))
			}
		}
	}
	if eff.doneRental != nil {
		if err := m.store.CompleteRental(ctx, eff.doneRental); err != nil {
			m.logger.WarnContext(ctx, "failed to persist rental completion", slog.Any("error", err))
		}
	}
	if eff.newHold != nil {
		if err := m.store.CreateReservation(ctx, eff.newHold); err != nil {
			m.logger.WarnContext(ctx, "failed to persist reservation", slog.Any("error", err))
		}
	}
	for _, hold := range eff.holds {
		if err := m.store.SetReservationStatus(ctx, hold.ID, hold.Status); err != nil {
			m.logger.WarnContext(ctx, "failed to persist reservation status", slog.Any("error", err))
		}
	}
	for _, b := range eff.bikes {
		if err := m.store.SaveBike(ctx, b); err != nil {
			m.logger.WarnContext(ctx, "failed to persist bike state", slog.String("bike", b.Label), slog.Any("error", err))
		}
	}

	if eff.rentalCount != nil {
		fleetActiveRentals.Set(float64(*eff.rentalCount))
	}
	for _, snap := range eff.snapshots {
		fleetDockedBikes.WithLabelValues(snap.Name).Set(float64(snap.BikesAvailable))
	}

	if len(eff.snapshots) > 0 {
		m.invalidate(ctx)
		for _, snap := range eff.snapshots {
			m.publish(snap)
		}
	}
}

func (m *Manager) award(ctx context.Context, intent *rewardIntent) {
	balance, err := m.rewards.Award(ctx, intent.userID, intent.amount, intent.reason, intent.stationID)
	if err != nil {
		m.logger.WarnContext(ctx, "reward side channel failed",
			slog.String("user", intent.userID),
			slog.String("reason", intent.reason),
			slog.Any("error", err),
		)
		return
	}
	m.logger.InfoContext(ctx, "reward paid",
		slog.String("user", intent.userID),
		slog.Int("amount_cents", intent.amount),
		slog.Int("balance_cents", balance),
	)
}

func (m *Manager) record(res station.Result) {
	fleetOperationsTotal.WithLabelValues(string(res.Op)).Inc()
}

func (m *Manager) publish(snap *station.Snapshot) {
	if m.notifier == nil {
		return
	}
	m.notifier.PublishStationUpdate(snap)
}

func (m *Manager) invalidate(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to invalidate station cache", slog.Any("error", err))
	}
}
