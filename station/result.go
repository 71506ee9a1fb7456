package station

import (
	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/rental"
	"github.com/semanticallynull/dockshare-backend/reservation"
)

// Op tags every mutating fleet operation outcome. The fleet package adds the
// manager-level tags (manual move, rent) to this set.
type Op string

const (
	ReturnSuccess           Op = "RETURN_SUCCESS"
	ReturnFailed            Op = "RETURN_FAILED"
	ReturnFailedStationFull Op = "RETURN_FAILED_STATION_FULL"
	ReturnFailedStationOOS  Op = "RETURN_FAILED_STATION_OOS"

	CheckoutSuccess            Op = "CHECKOUT_SUCCESS"
	CheckoutFailed             Op = "CHECKOUT_FAILED"
	CheckoutFailedStationEmpty Op = "CHECKOUT_FAILED_STATION_EMPTY"
	CheckoutFailedStationOOS   Op = "CHECKOUT_FAILED_STATION_OOS"
	CheckoutFailedNoBike       Op = "CHECKOUT_FAILED_NO_BIKE"

	ReservationCreated   Op = "RESERVATION_CREATED"
	ReservationFailed    Op = "RESERVATION_FAILED"
	ReservationExpired   Op = "RESERVATION_EXPIRED"
	ReservationUsed      Op = "RESERVATION_USED"
	ReservationCancelled Op = "RESERVATION_CANCELLED"
)

// Kind classifies a failed Result. Successful results carry no kind.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidState       Kind = "INVALID_STATE"
	KindCapacityViolation  Kind = "CAPACITY_VIOLATION"
	KindOwnershipViolation Kind = "OWNERSHIP_VIOLATION"
	KindInconsistency      Kind = "CONCURRENCY_INCONSISTENCY"
	KindMoveRollbackFailed Kind = "MOVE_ROLLBACK_FAILED"
)

// Result is the uniform outcome of every mutating operation on a station or
// the fleet. Failures are results, not errors: the station numbers give the
// caller enough context to explain the rejection to a rider.
type Result struct {
	Success     bool
	Op          Op
	Kind        Kind
	Message     string
	Station     *Snapshot
	Bike        *bike.Bike
	Rental      *rental.Rental
	Reservation *reservation.Reservation
}

// Fail builds a failed Result against a station snapshot. The snapshot may be
// nil when the failure happened before a station was resolved.
func Fail(op Op, kind Kind, message string, snap *Snapshot) Result {
	return Result{
		Success: false,
		Op:      op,
		Kind:    kind,
		Message: message,
		Station: snap,
	}
}
