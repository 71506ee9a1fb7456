package acceptance

import (
	"net/http"
	"testing"
)

func TestRentalFlow(t *testing.T) {
	ts := NewTestServer(t)

	origin := ts.CreateStation(t, "Harbor Gate", 4)
	dest := ts.CreateStation(t, "Mill Lane", 4)
	ts.RegisterBike(t, "DOCK-001", origin)
	ts.RegisterBike(t, "DOCK-002", origin)

	rider := asUser("auth0|rider-1")

	w := ts.POST("/rentals", map[string]any{"stationId": origin, "bikeLabel": "DOCK-001"}, rider)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var started struct {
		Op     string `json:"op"`
		Rental struct {
			BikeLabel string `json:"bikeLabel"`
			Status    string `json:"status"`
		} `json:"rental"`
		Station struct {
			BikesAvailable int `json:"bikesAvailable"`
			FreeDocks      int `json:"freeDocks"`
		} `json:"station"`
	}
	decode(t, w, &started)
	if started.Op != "CHECKOUT_SUCCESS" {
		t.Errorf("expected CHECKOUT_SUCCESS, got %s", started.Op)
	}
	if started.Rental.BikeLabel != "DOCK-001" || started.Rental.Status != "active" {
		t.Errorf("unexpected rental: %+v", started.Rental)
	}
	if started.Station.BikesAvailable != 1 || started.Station.FreeDocks != 3 {
		t.Errorf("unexpected occupancy: %+v", started.Station)
	}

	w = ts.GET("/rentals/current", rider)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var current struct {
		InProgress bool `json:"inProgress"`
		Rental     *struct {
			BikeLabel string `json:"bikeLabel"`
		} `json:"rental"`
	}
	decode(t, w, &current)
	if !current.InProgress || current.Rental == nil || current.Rental.BikeLabel != "DOCK-001" {
		t.Errorf("expected open rental on DOCK-001, got %s", w.Body.String())
	}

	// One rental at a time.
	w = ts.POST("/rentals", map[string]any{"stationId": origin}, rider)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for second rental, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/return", map[string]any{"stationId": dest, "bikeLabel": "DOCK-001"}, rider)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var returned struct {
		Op     string `json:"op"`
		Rental struct {
			Status     string `json:"status"`
			EndStation string `json:"endStation"`
		} `json:"rental"`
	}
	decode(t, w, &returned)
	if returned.Op != "RETURN_SUCCESS" {
		t.Errorf("expected RETURN_SUCCESS, got %s", returned.Op)
	}
	if returned.Rental.Status != "completed" {
		t.Errorf("expected completed rental, got %+v", returned.Rental)
	}

	w = ts.GET("/rentals/current", rider)
	decode(t, w, &current)
	if current.InProgress {
		t.Error("rental still open after return")
	}

	w = ts.GET("/rentals", rider)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var history []struct {
		BikeLabel string `json:"bikeLabel"`
		Status    string `json:"status"`
	}
	decode(t, w, &history)
	if len(history) != 1 || history[0].Status != "completed" {
		t.Errorf("unexpected history: %s", w.Body.String())
	}
}

func TestRentalRequiresAuth(t *testing.T) {
	ts := NewTestServer(t)

	w := ts.POST("/rentals", map[string]any{"stationId": "ignored"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRentalFromUnknownStation(t *testing.T) {
	ts := NewTestServer(t)

	w := ts.POST("/rentals", map[string]any{"stationId": "0e0f8c9a-5f3a-4f7e-9a3a-111111111111"}, asUser("auth0|rider-2"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	if resp.Code != "STATION_NOT_FOUND" {
		t.Errorf("expected STATION_NOT_FOUND, got %s", resp.Code)
	}
}

func TestReturnRejectedWhenStationFull(t *testing.T) {
	ts := NewTestServer(t)

	origin := ts.CreateStation(t, "Harbor Gate", 4)
	full := ts.CreateStation(t, "Mill Lane", 2)
	ts.RegisterBike(t, "DOCK-010", origin)
	ts.RegisterBike(t, "DOCK-011", full)
	ts.RegisterBike(t, "DOCK-012", full)

	rider := asUser("auth0|rider-3")
	w := ts.POST("/rentals", map[string]any{"stationId": origin, "bikeLabel": "DOCK-010"}, rider)
	if w.Code != http.StatusCreated {
		t.Fatalf("rent failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/return", map[string]any{"stationId": full, "bikeLabel": "DOCK-010"}, rider)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
		Kind string `json:"kind"`
	}
	decode(t, w, &resp)
	if resp.Code != "RETURN_FAILED_STATION_FULL" || resp.Kind != "CAPACITY_VIOLATION" {
		t.Errorf("unexpected rejection: %s", w.Body.String())
	}

	// The rental stays open, the rider keeps the bike.
	w = ts.GET("/rentals/current", rider)
	var current struct {
		InProgress bool `json:"inProgress"`
	}
	decode(t, w, &current)
	if !current.InProgress {
		t.Error("rental closed by a failed return")
	}
}

func TestReturnWrongBikeRejected(t *testing.T) {
	ts := NewTestServer(t)

	origin := ts.CreateStation(t, "Harbor Gate", 4)
	ts.RegisterBike(t, "DOCK-020", origin)
	ts.RegisterBike(t, "DOCK-021", origin)

	rider := asUser("auth0|rider-4")
	w := ts.POST("/rentals", map[string]any{"stationId": origin, "bikeLabel": "DOCK-020"}, rider)
	if w.Code != http.StatusCreated {
		t.Fatalf("rent failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/return", map[string]any{"stationId": origin, "bikeLabel": "DOCK-021"}, rider)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.POST("/rentals/return", map[string]any{"stationId": origin, "bikeLabel": "DOCK-999"}, asUser("auth0|rider-5"))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without an active rental, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReturnToLowStationPaysReward(t *testing.T) {
	ts := NewTestServer(t)

	origin := ts.CreateStation(t, "Depot Row", 8)
	outskirts := ts.CreateStation(t, "Outskirts", 8)
	ts.RegisterBike(t, "DOCK-030", origin)

	rider := asUser("auth0|rider-6")
	w := ts.POST("/rentals", map[string]any{"stationId": origin, "bikeLabel": "DOCK-030"}, rider)
	if w.Code != http.StatusCreated {
		t.Fatalf("rent failed: %d %s", w.Code, w.Body.String())
	}

	// One bike in eight docks is under the 20% reward threshold.
	w = ts.POST("/rentals/return", map[string]any{"stationId": outskirts, "bikeLabel": "DOCK-030"}, rider)
	if w.Code != http.StatusOK {
		t.Fatalf("return failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.GET("/customers/me", rider)
	if w.Code != http.StatusOK {
		t.Fatalf("me failed: %d %s", w.Code, w.Body.String())
	}
	var me struct {
		Tier               string `json:"tier"`
		FlexBalance        int    `json:"flexBalance"`
		LifetimeFlexEarned int    `json:"lifetimeFlexEarned"`
	}
	decode(t, w, &me)
	if me.FlexBalance != 100 || me.LifetimeFlexEarned != 100 {
		t.Errorf("expected 100 flex cents, got %+v", me)
	}
	if me.Tier != "bronze" {
		t.Errorf("expected bronze tier, got %s", me.Tier)
	}
}
