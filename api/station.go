package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/fleet"
	"github.com/semanticallynull/dockshare-backend/internal/middleware"
	"github.com/semanticallynull/dockshare-backend/station"
)

func (a *API) stationsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	if a.cache != nil {
		snaps, err := a.cache.GetSnapshots(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, snaps)
			return
		}
		if !errors.Is(err, station.ErrCacheMiss) {
			logger.WarnContext(c, "station cache read failed", "error", err)
		}
	}

	snaps := a.m.Snapshots()

	if a.cache != nil {
		if err := a.cache.SetSnapshots(c.Request.Context(), snaps); err != nil {
			logger.WarnContext(c, "station cache write failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, snaps)
}

type stationDetailResponse struct {
	station.Snapshot
	Bikes []bikeResponse `json:"bikes"`
}

func (a *API) stationHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "station id must be a UUID"})
		return
	}

	snap, bikes, err := a.m.StationDetail(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "STATION_NOT_FOUND", "message": "Station not found"})
		return
	}

	resp := stationDetailResponse{Snapshot: *snap, Bikes: make([]bikeResponse, 0, len(bikes))}
	for _, b := range bikes {
		resp.Bikes = append(resp.Bikes, toBikeResponse(b))
	}

	c.JSON(http.StatusOK, resp)
}

type createStationRequest struct {
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity" binding:"required"`
	Type     string `json:"type"`
}

func (a *API) createStationHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req createStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	var typ station.Type
	switch req.Type {
	case "", "public":
		typ = station.Public
	case "private":
		typ = station.Private
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "type must be public or private"})
		return
	}

	st, err := a.m.CreateStation(c, req.Name, req.Capacity, typ)
	if err != nil {
		if errors.Is(err, fleet.ErrCapacityOutOfBounds) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "CAPACITY_OUT_OF_BOUNDS", "message": err.Error()})
			return
		}
		logger.ErrorContext(c, "failed to create station", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, st.Snapshot())
}

type setStationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (a *API) setStationStatusHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "station id must be a UUID"})
		return
	}

	var req setStationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	var status station.Status
	switch req.Status {
	case "active":
		status = station.StatusActive
	case "out_of_service":
		status = station.StatusOutOfService
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "status must be active or out_of_service"})
		return
	}

	st, err := a.m.SetStationStatus(c, id, status)
	if err != nil {
		if errors.Is(err, station.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "STATION_NOT_FOUND", "message": "Station not found"})
			return
		}
		logger.ErrorContext(c, "failed to set station status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, st.Snapshot())
}
