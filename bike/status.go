package bike

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusOnTrip      Status = "on_trip"
	StatusMaintenance Status = "maintenance"
)

// transitions is the full set of legal status changes. Anything not listed
// here is rejected by ChangeStatus.
var transitions = map[Status][]Status{
	StatusAvailable:   {StatusReserved, StatusOnTrip, StatusMaintenance},
	StatusReserved:    {StatusOnTrip, StatusAvailable},
	StatusOnTrip:      {StatusAvailable, StatusMaintenance},
	StatusMaintenance: {StatusAvailable},
}

// CanTransition reports whether the change from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ChangeStatus moves the bike to next if the transition table allows it,
// updating the last-modified timestamp as a side effect.
func (b *Bike) ChangeStatus(next Status) error {
	if !b.Status.CanTransition(next) {
		return &InvalidTransitionError{Label: b.Label, From: b.Status, To: next}
	}
	b.Status = next
	b.UpdatedAt = time.Now()
	return nil
}

type InvalidTransitionError struct {
	Label string
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("bike %s: invalid status transition %s -> %s", e.Label, e.From, e.To)
}

// TransitionFromError unpacks an invalid-transition error, if err is one.
func TransitionFromError(err error) (from, to Status, ok bool) {
	iterr, ok := err.(*InvalidTransitionError)
	if ok {
		return iterr.From, iterr.To, true
	}
	return "", "", false
}
