package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/bike"
	"github.com/semanticallynull/dockshare-backend/fleet"
	"github.com/semanticallynull/dockshare-backend/internal/middleware"
	"github.com/semanticallynull/dockshare-backend/station"
)

// voltageToPercentage maps the pack voltage (reported in decivolts, 34.0V
// empty to 41.2V full) onto 0-100.
func voltageToPercentage(voltage int) int {
	pct := (voltage - 340) * 100 / 72
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

type bikeResponse struct {
	ID             uuid.UUID   `json:"id"`
	Label          string      `json:"label"`
	Type           bike.Type   `json:"type"`
	Status         bike.Status `json:"status"`
	BatteryPercent int         `json:"batteryPercent"`
	Lat            float64     `json:"latitude"`
	Lng            float64     `json:"longitude"`
	StationID      *uuid.UUID  `json:"stationId,omitempty"`
	StationName    string      `json:"stationName,omitempty"`
	DisplayName    string      `json:"displayName,omitempty"`
	ImageURL       string      `json:"imageUrl,omitempty"`
}

func toBikeResponse(b bike.Bike) bikeResponse {
	br := bikeResponse{
		ID:        b.ID,
		Label:     b.Label,
		Type:      b.Type,
		Status:    b.Status,
		Lat:       b.Location.P.X,
		Lng:       b.Location.P.Y,
		StationID: b.StationID,
	}
	if b.Type == bike.EBike {
		br.BatteryPercent = voltageToPercentage(b.BatteryVoltage)
	}
	if b.StationName != nil {
		br.StationName = *b.StationName
	}
	if b.DisplayName != nil {
		br.DisplayName = *b.DisplayName
	}
	if b.ImageURL != nil {
		br.ImageURL = *b.ImageURL
	}
	return br
}

func (a *API) bikesHandler(c *gin.Context) {
	bikes := a.m.Bikes()

	resp := make([]bikeResponse, 0, len(bikes))
	for _, b := range bikes {
		resp = append(resp, toBikeResponse(b))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) bikeHandler(c *gin.Context) {
	label := c.Param("label")

	b, ok := a.m.Bike(label)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
		return
	}

	c.JSON(http.StatusOK, toBikeResponse(b))
}

type registerBikeRequest struct {
	Label     string `json:"label" binding:"required"`
	Type      string `json:"type"`
	StationID string `json:"stationId" binding:"required"`
}

func (a *API) registerBikeHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req registerBikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	var typ bike.Type
	switch req.Type {
	case "", "standard":
		typ = bike.Standard
	case "ebike":
		typ = bike.EBike
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "type must be standard or ebike"})
		return
	}

	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "stationId must be a UUID"})
		return
	}

	b, err := a.m.RegisterBike(c, req.Label, typ, stationID)
	if err != nil {
		switch {
		case errors.Is(err, station.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": "STATION_NOT_FOUND", "message": "Station not found"})
		case errors.Is(err, fleet.ErrDuplicateLabel):
			c.JSON(http.StatusConflict, gin.H{"code": "DUPLICATE_LABEL", "message": err.Error()})
		case errors.Is(err, fleet.ErrDockRejected):
			c.JSON(http.StatusConflict, gin.H{"code": "DOCK_REJECTED", "message": err.Error()})
		default:
			logger.ErrorContext(c, "failed to register bike", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, toBikeResponse(*b))
}
