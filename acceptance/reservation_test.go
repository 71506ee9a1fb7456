package acceptance

import (
	"net/http"
	"strings"
	"testing"
)

func TestReservationFlow(t *testing.T) {
	ts := NewTestServer(t)

	st := ts.CreateStation(t, "Castle Square", 4)
	ts.RegisterBike(t, "DOCK-100", st)

	holder := asUser("auth0|holder")
	other := asUser("auth0|other")

	w := ts.POST("/reservations", map[string]any{"stationId": st}, holder)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Op          string `json:"op"`
		Reservation struct {
			BikeLabel string `json:"bikeLabel"`
			Status    string `json:"status"`
		} `json:"reservation"`
	}
	decode(t, w, &created)
	if created.Op != "RESERVATION_CREATED" || created.Reservation.BikeLabel != "DOCK-100" {
		t.Fatalf("unexpected reservation: %s", w.Body.String())
	}
	if created.Reservation.Status != "active" {
		t.Errorf("expected active hold, got %s", created.Reservation.Status)
	}

	w = ts.GET("/reservations/current", holder)
	var current struct {
		Active      bool `json:"active"`
		Reservation *struct {
			BikeLabel string `json:"bikeLabel"`
		} `json:"reservation"`
	}
	decode(t, w, &current)
	if !current.Active || current.Reservation.BikeLabel != "DOCK-100" {
		t.Errorf("expected active hold on DOCK-100, got %s", w.Body.String())
	}

	// The held bike is out of reach for everyone else.
	w = ts.POST("/rentals", map[string]any{"stationId": st}, other)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no free bikes, got %d: %s", w.Code, w.Body.String())
	}
	w = ts.POST("/rentals", map[string]any{"stationId": st, "bikeLabel": "DOCK-100"}, other)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for someone else's hold, got %d: %s", w.Code, w.Body.String())
	}

	// The holder's unlabelled checkout redeems the hold.
	w = ts.POST("/rentals", map[string]any{"stationId": st}, holder)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var redeemed struct {
		Op      string `json:"op"`
		Message string `json:"message"`
		Rental  struct {
			BikeLabel string `json:"bikeLabel"`
		} `json:"rental"`
		Reservation struct {
			Status string `json:"status"`
		} `json:"reservation"`
	}
	decode(t, w, &redeemed)
	if redeemed.Rental.BikeLabel != "DOCK-100" {
		t.Errorf("expected the held bike, got %s", redeemed.Rental.BikeLabel)
	}
	if redeemed.Reservation.Status != "used" {
		t.Errorf("expected used hold, got %s", w.Body.String())
	}
	if !strings.Contains(redeemed.Message, "reservation redeemed") {
		t.Errorf("expected redemption message, got %q", redeemed.Message)
	}

	w = ts.GET("/reservations/current", holder)
	decode(t, w, &current)
	if current.Active {
		t.Error("hold still active after redemption")
	}

	w = ts.GET("/reservations", holder)
	var history []struct {
		Status string `json:"status"`
	}
	decode(t, w, &history)
	if len(history) != 1 || history[0].Status != "used" {
		t.Errorf("unexpected reservation history: %s", w.Body.String())
	}
}

func TestCancelReservationFreesBike(t *testing.T) {
	ts := NewTestServer(t)

	st := ts.CreateStation(t, "Castle Square", 4)
	ts.RegisterBike(t, "DOCK-110", st)

	holder := asUser("auth0|holder-2")
	other := asUser("auth0|other-2")

	w := ts.POST("/reservations", map[string]any{"stationId": st}, holder)
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.POST("/reservations/cancel", nil, holder)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cancelled struct {
		Op string `json:"op"`
	}
	decode(t, w, &cancelled)
	if cancelled.Op != "RESERVATION_CANCELLED" {
		t.Errorf("expected RESERVATION_CANCELLED, got %s", cancelled.Op)
	}

	w = ts.POST("/rentals", map[string]any{"stationId": st}, other)
	if w.Code != http.StatusCreated {
		t.Errorf("expected released bike to be rentable, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelWithoutReservation(t *testing.T) {
	ts := NewTestServer(t)

	w := ts.POST("/reservations/cancel", nil, asUser("auth0|nobody"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOneReservationPerRider(t *testing.T) {
	ts := NewTestServer(t)

	first := ts.CreateStation(t, "North Dock", 4)
	second := ts.CreateStation(t, "South Dock", 4)
	ts.RegisterBike(t, "DOCK-120", first)
	ts.RegisterBike(t, "DOCK-121", second)

	holder := asUser("auth0|holder-3")

	w := ts.POST("/reservations", map[string]any{"stationId": first}, holder)
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.POST("/reservations", map[string]any{"stationId": second}, holder)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
	}
	decode(t, w, &resp)
	if !strings.Contains(resp.Message, "North Dock") {
		t.Errorf("expected the existing hold's station in the message, got %q", resp.Message)
	}
}

func TestReserveAtEmptyStation(t *testing.T) {
	ts := NewTestServer(t)

	st := ts.CreateStation(t, "Bare Station", 4)

	w := ts.POST("/reservations", map[string]any{"stationId": st}, asUser("auth0|holder-4"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	if resp.Code != "RESERVATION_FAILED" {
		t.Errorf("expected RESERVATION_FAILED, got %s", resp.Code)
	}
}
