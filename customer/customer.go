package customer

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID       uuid.UUID
	Auth0ID  string         `db:"auth0_id"`
	StripeID sql.NullString `db:"stripe_id"`
	Email    sql.NullString `db:"email"`
	Name     sql.NullString `db:"name"`

	// FlexBalance is the spendable flex-dollar credit in cents.
	// LifetimeFlexEarned only ever grows and drives the loyalty tier.
	FlexBalance        int `db:"flex_balance"`
	LifetimeFlexEarned int `db:"lifetime_flex_earned"`

	CreatedAt time.Time `db:"created_at"`
}

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Lifetime earnings thresholds, in cents.
const (
	silverThreshold   = 2_500
	goldThreshold     = 10_000
	platinumThreshold = 25_000
)

// Tier derives the loyalty tier from lifetime flex earnings.
func (c Customer) Tier() Tier {
	switch {
	case c.LifetimeFlexEarned >= platinumThreshold:
		return TierPlatinum
	case c.LifetimeFlexEarned >= goldThreshold:
		return TierGold
	case c.LifetimeFlexEarned >= silverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Multiplier scales reward payouts for the tier.
func (t Tier) Multiplier() float64 {
	switch t {
	case TierPlatinum:
		return 2.0
	case TierGold:
		return 1.5
	case TierSilver:
		return 1.25
	default:
		return 1.0
	}
}
