package customer

import "testing"

func TestTier_Thresholds(t *testing.T) {
	cases := []struct {
		lifetime int
		want     Tier
	}{
		{0, TierBronze},
		{2_499, TierBronze},
		{2_500, TierSilver},
		{9_999, TierSilver},
		{10_000, TierGold},
		{24_999, TierGold},
		{25_000, TierPlatinum},
		{100_000, TierPlatinum},
	}

	for _, tc := range cases {
		c := Customer{LifetimeFlexEarned: tc.lifetime}
		if got := c.Tier(); got != tc.want {
			t.Errorf("lifetime %d: tier %s, want %s", tc.lifetime, got, tc.want)
		}
	}
}

func TestTier_Multipliers(t *testing.T) {
	cases := []struct {
		tier Tier
		want float64
	}{
		{TierBronze, 1.0},
		{TierSilver, 1.25},
		{TierGold, 1.5},
		{TierPlatinum, 2.0},
	}

	for _, tc := range cases {
		if got := tc.tier.Multiplier(); got != tc.want {
			t.Errorf("%s multiplier %v, want %v", tc.tier, got, tc.want)
		}
	}
}
