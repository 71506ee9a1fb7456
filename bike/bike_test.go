package bike

import (
	"testing"
	"time"
)

func TestChangeStatus_AllowsLegalTransitions(t *testing.T) {
	legal := []struct {
		from Status
		to   Status
	}{
		{StatusAvailable, StatusReserved},
		{StatusAvailable, StatusOnTrip},
		{StatusAvailable, StatusMaintenance},
		{StatusReserved, StatusOnTrip},
		{StatusReserved, StatusAvailable},
		{StatusOnTrip, StatusAvailable},
		{StatusOnTrip, StatusMaintenance},
		{StatusMaintenance, StatusAvailable},
	}

	for _, tc := range legal {
		b := New("DOCK-001", Standard)
		b.Status = tc.from

		if err := b.ChangeStatus(tc.to); err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if b.Status != tc.to {
			t.Errorf("%s -> %s: status is %s", tc.from, tc.to, b.Status)
		}
	}
}

func TestChangeStatus_RejectsIllegalTransitions(t *testing.T) {
	illegal := []struct {
		from Status
		to   Status
	}{
		{StatusReserved, StatusMaintenance},
		{StatusMaintenance, StatusReserved},
		{StatusMaintenance, StatusOnTrip},
		{StatusOnTrip, StatusReserved},
		{StatusAvailable, StatusAvailable},
	}

	for _, tc := range illegal {
		b := New("DOCK-001", Standard)
		b.Status = tc.from

		err := b.ChangeStatus(tc.to)
		if err == nil {
			t.Errorf("%s -> %s: expected error, got nil", tc.from, tc.to)
			continue
		}
		from, to, ok := TransitionFromError(err)
		if !ok {
			t.Errorf("%s -> %s: expected invalid transition error, got %v", tc.from, tc.to, err)
		}
		if from != tc.from || to != tc.to {
			t.Errorf("error carries %s -> %s, want %s -> %s", from, to, tc.from, tc.to)
		}
		if b.Status != tc.from {
			t.Errorf("%s -> %s: status changed to %s on rejected transition", tc.from, tc.to, b.Status)
		}
	}
}

func TestChangeStatus_BumpsUpdatedAt(t *testing.T) {
	b := New("DOCK-001", Standard)
	before := b.UpdatedAt

	time.Sleep(time.Millisecond)
	if err := b.ChangeStatus(StatusOnTrip); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.UpdatedAt.After(before) {
		t.Errorf("UpdatedAt not bumped: %v -> %v", before, b.UpdatedAt)
	}
}

func TestReserve_PlacesHold(t *testing.T) {
	b := New("DOCK-001", EBike)

	if err := b.Reserve("auth0|rider-1", 15*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Status != StatusReserved {
		t.Errorf("expected status %s, got %s", StatusReserved, b.Status)
	}
	if b.HeldBy == nil || *b.HeldBy != "auth0|rider-1" {
		t.Errorf("hold not recorded for user: %v", b.HeldBy)
	}
	if b.HoldExpiresAt == nil {
		t.Fatal("hold expiry not set")
	}
	if remaining := time.Until(*b.HoldExpiresAt); remaining > 15*time.Minute || remaining < 14*time.Minute {
		t.Errorf("hold expiry %v not ~15m out", remaining)
	}
}

func TestReserve_FailsUnlessAvailable(t *testing.T) {
	for _, status := range []Status{StatusReserved, StatusOnTrip, StatusMaintenance} {
		b := New("DOCK-001", Standard)
		b.Status = status

		if err := b.Reserve("auth0|rider-1", 15*time.Minute); err != ErrNotAvailable {
			t.Errorf("status %s: expected ErrNotAvailable, got %v", status, err)
		}
	}
}

func TestReleaseHold_ClearsHold(t *testing.T) {
	b := New("DOCK-001", Standard)
	if err := b.Reserve("auth0|rider-1", 15*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := b.ReleaseHold(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Status != StatusAvailable {
		t.Errorf("expected status %s, got %s", StatusAvailable, b.Status)
	}
	if b.HeldBy != nil || b.HoldExpiresAt != nil {
		t.Errorf("hold fields not cleared: %v %v", b.HeldBy, b.HoldExpiresAt)
	}
}

func TestReleaseHold_NoopWithoutHold(t *testing.T) {
	b := New("DOCK-001", Standard)
	b.Status = StatusOnTrip

	if err := b.ReleaseHold(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if b.Status != StatusOnTrip {
		t.Errorf("status changed by no-op release: %s", b.Status)
	}
}

func TestHeldFor(t *testing.T) {
	now := time.Now()

	b := New("DOCK-001", Standard)
	if err := b.Reserve("auth0|rider-1", 15*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.HeldFor("auth0|rider-1", now) {
		t.Error("expected hold for the holder")
	}
	if b.HeldFor("auth0|rider-2", now) {
		t.Error("hold reported for a different user")
	}
	if b.HeldFor("auth0|rider-1", now.Add(time.Hour)) {
		t.Error("expired hold still reported")
	}
}

func TestHoldExpired(t *testing.T) {
	now := time.Now()

	b := New("DOCK-001", Standard)
	if b.HoldExpired(now) {
		t.Error("bike without hold reports expired hold")
	}

	if err := b.Reserve("auth0|rider-1", 15*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.HoldExpired(now) {
		t.Error("fresh hold reports expired")
	}
	if !b.HoldExpired(now.Add(16 * time.Minute)) {
		t.Error("lapsed hold not reported expired")
	}
}
