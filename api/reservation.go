package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/internal/middleware"
	"github.com/semanticallynull/dockshare-backend/reservation"
)

type reservationResponse struct {
	ID          uuid.UUID          `json:"id"`
	BikeLabel   string             `json:"bikeLabel"`
	StationID   uuid.UUID          `json:"stationId"`
	StationName string             `json:"stationName,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	Status      reservation.Status `json:"status"`
}

func toReservationResponse(r reservation.Reservation, now time.Time) reservationResponse {
	vr := reservationResponse{
		ID:        r.ID,
		BikeLabel: r.BikeLabel,
		StationID: r.StationID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
		Status:    r.StatusAt(now),
	}
	if r.StationName.Valid {
		vr.StationName = r.StationName.String
	}
	return vr
}

type reserveRequest struct {
	StationID string `json:"stationId" binding:"required"`
}

func (a *API) createReservationHandler(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "stationId must be a UUID"})
		return
	}

	res := a.m.Reserve(c, uid, stationID)
	if !res.Success {
		failJSON(c, res)
		return
	}

	c.JSON(http.StatusCreated, toOperationResponse(res, time.Now()))
}

type reservationState struct {
	Active      bool                 `json:"active"`
	Reservation *reservationResponse `json:"reservation,omitempty"`
}

func (a *API) currentReservationHandler(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	now := time.Now()
	r, ok := a.m.CurrentReservation(uid, now)
	if !ok {
		c.JSON(http.StatusOK, reservationState{Active: false})
		return
	}

	vr := toReservationResponse(r, now)
	c.JSON(http.StatusOK, reservationState{Active: true, Reservation: &vr})
}

func (a *API) cancelReservationHandler(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	res := a.m.CancelReservation(c, uid)
	if !res.Success {
		failJSON(c, res)
		return
	}

	c.JSON(http.StatusOK, toOperationResponse(res, time.Now()))
}

func (a *API) reservationsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	reservations, err := a.store.ReservationsByUser(c, uid)
	if err != nil {
		logger.ErrorContext(c, "failed to list reservations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now()
	resp := make([]reservationResponse, 0, len(reservations))
	for _, r := range reservations {
		resp = append(resp, toReservationResponse(r, now))
	}

	c.JSON(http.StatusOK, resp)
}
