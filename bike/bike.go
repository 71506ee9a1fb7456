// Package bike
package bike

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Type int

const (
	Standard Type = iota
	EBike
)

func (t Type) String() string {
	return [...]string{"standard", "ebike"}[t]
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) Scan(i any) error {
	switch v := i.(type) {
	case string:
		switch v {
		case "standard":
			*t = Standard
			return nil
		case "ebike":
			*t = EBike
			return nil
		}
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("invalid bike type %v", i)
}

func (t Type) Value() (driver.Value, error) {
	return t.String(), nil
}

// Bike represents a single bike in the fleet.
type Bike struct {
	// ID is an internal identifier for a bike
	ID uuid.UUID
	// Label is a physical label which is on the bike. It should be scannable (e.g. "DOCK-123")
	// in QR Code or Code-128 format. It is the identifier every fleet operation uses.
	Label string
	// IMEI is the identifier of the SIM card used in the bike. This is what is transmitted by the lock
	IMEI string

	Type   Type
	Status Status

	Location pgtype.Point

	// BatteryVoltage is only meaningful for e-bikes; standard bikes report 0.
	BatteryVoltage int `db:"battery_voltage"`

	// StationID is the station the bike is currently docked at, nil while on a trip.
	StationID   *uuid.UUID `db:"station_id"`
	StationName *string    `db:"station_name"`

	// HeldBy and HoldExpiresAt describe the active soft hold, if any.
	HeldBy        *string    `db:"held_by"`
	HoldExpiresAt *time.Time `db:"hold_expires_at"`

	// DisplayName is a user-friendly name for the bike model (e.g., "Bergamont Cargoville LJ")
	DisplayName *string `db:"display_name"`
	// ImageURL is a URL to an image of the bike
	ImageURL *string `db:"image_url"`

	UpdatedAt time.Time `db:"updated_at"`
}

// New returns a bike in the available state, the state every bike starts its life in.
func New(label string, typ Type) *Bike {
	return &Bike{
		ID:        uuid.New(),
		Label:     label,
		Type:      typ,
		Status:    StatusAvailable,
		UpdatedAt: time.Now(),
	}
}

// Reserve places a soft hold on the bike for userID. Only an available bike
// can be reserved; the hold expires holdFor from now.
func (b *Bike) Reserve(userID string, holdFor time.Duration) error {
	if b.Status != StatusAvailable {
		return ErrNotAvailable
	}
	if err := b.ChangeStatus(StatusReserved); err != nil {
		return err
	}
	expires := time.Now().Add(holdFor)
	b.HeldBy = &userID
	b.HoldExpiresAt = &expires
	return nil
}

// ReleaseHold clears the soft hold and returns the bike to available.
// Calling it on a bike without a hold is a no-op.
func (b *Bike) ReleaseHold() error {
	if b.Status != StatusReserved {
		return nil
	}
	if err := b.ChangeStatus(StatusAvailable); err != nil {
		return err
	}
	b.HeldBy = nil
	b.HoldExpiresAt = nil
	return nil
}

// HeldFor reports whether the bike carries an unexpired hold for userID.
func (b *Bike) HeldFor(userID string, now time.Time) bool {
	return b.Status == StatusReserved && b.HeldBy != nil && *b.HeldBy == userID && !b.HoldExpired(now)
}

// HoldExpired reports whether the hold on the bike lapsed at now. Bikes
// without a hold never report an expired hold.
func (b *Bike) HoldExpired(now time.Time) bool {
	return b.Status == StatusReserved && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now)
}
