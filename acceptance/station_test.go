package acceptance

import (
	"net/http"
	"testing"
)

func TestStationDirectory(t *testing.T) {
	ts := NewTestServer(t)

	ts.CreateStation(t, "Borough Market", 4)
	aID := ts.CreateStation(t, "Aldgate East", 6)
	ts.RegisterBike(t, "DOCK-200", aID)
	ts.RegisterBike(t, "DOCK-201", aID)

	// Public, no auth headers.
	w := ts.GET("/stations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Capacity       int    `json:"capacity"`
		BikesAvailable int    `json:"bikesAvailable"`
		FreeDocks      int    `json:"freeDocks"`
		IsEmpty        bool   `json:"isEmpty"`
	}
	decode(t, w, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(list))
	}
	if list[0].Name != "Aldgate East" || list[1].Name != "Borough Market" {
		t.Errorf("expected name ordering, got %s then %s", list[0].Name, list[1].Name)
	}
	if list[0].BikesAvailable != 2 || list[0].FreeDocks != 4 {
		t.Errorf("unexpected occupancy for %s: %+v", list[0].Name, list[0])
	}
	if !list[1].IsEmpty {
		t.Errorf("expected %s to be empty", list[1].Name)
	}

	w = ts.GET("/stations/"+aID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail struct {
		Name  string `json:"name"`
		Bikes []struct {
			Label  string `json:"label"`
			Status string `json:"status"`
		} `json:"bikes"`
	}
	decode(t, w, &detail)
	if detail.Name != "Aldgate East" || len(detail.Bikes) != 2 {
		t.Errorf("unexpected detail: %s", w.Body.String())
	}
	for _, b := range detail.Bikes {
		if b.Status != "available" {
			t.Errorf("expected available bike, got %+v", b)
		}
	}

	w = ts.GET("/stations/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w = ts.GET("/stations/1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStationOutOfService(t *testing.T) {
	ts := NewTestServer(t)

	st := ts.CreateStation(t, "Harbor Gate", 4)
	ts.RegisterBike(t, "DOCK-210", st)
	ts.RegisterBike(t, "DOCK-211", st)

	rider := asUser("auth0|rider-oos")
	w := ts.POST("/rentals", map[string]any{"stationId": st, "bikeLabel": "DOCK-210"}, rider)
	if w.Code != http.StatusCreated {
		t.Fatalf("rent failed: %d %s", w.Code, w.Body.String())
	}

	w = ts.POST("/stations/"+st+"/status", map[string]any{"status": "out_of_service"}, asUser("op|admin"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// No checkouts, returns or reservations while dark.
	w = ts.POST("/rentals", map[string]any{"stationId": st}, asUser("auth0|rider-oos-2"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	if resp.Code != "CHECKOUT_FAILED_STATION_OOS" {
		t.Errorf("expected CHECKOUT_FAILED_STATION_OOS, got %s", resp.Code)
	}

	w = ts.POST("/rentals/return", map[string]any{"stationId": st, "bikeLabel": "DOCK-210"}, rider)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.POST("/reservations", map[string]any{"stationId": st}, asUser("auth0|rider-oos-3"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// Back in service, the stuck rider can finally dock.
	w = ts.POST("/stations/"+st+"/status", map[string]any{"status": "active"}, asUser("op|admin"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = ts.POST("/rentals/return", map[string]any{"stationId": st, "bikeLabel": "DOCK-210"}, rider)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateStationValidation(t *testing.T) {
	ts := NewTestServer(t)
	op := asUser("op|admin")

	w := ts.POST("/stations", map[string]any{"name": "Tiny", "capacity": 1}, op)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for capacity below minimum, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	if resp.Code != "CAPACITY_OUT_OF_BOUNDS" {
		t.Errorf("expected CAPACITY_OUT_OF_BOUNDS, got %s", resp.Code)
	}

	w = ts.POST("/stations", map[string]any{"name": "Vast", "capacity": 65}, op)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for capacity above maximum, got %d", w.Code)
	}

	w = ts.POST("/stations", map[string]any{"capacity": 4}, op)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", w.Code)
	}

	w = ts.POST("/stations", map[string]any{"name": "Nowhere", "capacity": 4}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without auth, got %d", w.Code)
	}
}

func TestBikeDirectory(t *testing.T) {
	ts := NewTestServer(t)

	st := ts.CreateStation(t, "Aldgate East", 2)
	ts.RegisterBike(t, "DOCK-220", st)

	w := ts.GET("/bikes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var bikes []struct {
		Label       string `json:"label"`
		StationName string `json:"stationName"`
	}
	decode(t, w, &bikes)
	if len(bikes) != 1 || bikes[0].Label != "DOCK-220" || bikes[0].StationName != "Aldgate East" {
		t.Errorf("unexpected bike list: %s", w.Body.String())
	}

	w = ts.GET("/bikes/DOCK-220", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	w = ts.GET("/bikes/DOCK-999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	op := asUser("op|admin")

	w = ts.POST("/bikes", map[string]any{"label": "DOCK-220", "stationId": st}, op)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate label, got %d: %s", w.Code, w.Body.String())
	}

	// Fill the station, then one more must bounce.
	ts.RegisterBike(t, "DOCK-221", st)
	w = ts.POST("/bikes", map[string]any{"label": "DOCK-222", "stationId": st}, op)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a full station, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, w, &resp)
	if resp.Code != "DOCK_REJECTED" {
		t.Errorf("expected DOCK_REJECTED, got %s", resp.Code)
	}

	w = ts.POST("/bikes", map[string]any{"label": "DOCK-223", "type": "ebike", "stationId": "9d2e6a2e-0a7e-4a3f-8f55-222222222222"}, op)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown station, got %d: %s", w.Code, w.Body.String())
	}
}
