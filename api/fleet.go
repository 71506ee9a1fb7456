package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/internal/middleware"
	"github.com/semanticallynull/dockshare-backend/station"
)

type moveRequest struct {
	BikeLabel     string `json:"bikeLabel" binding:"required"`
	FromStationID string `json:"fromStationId" binding:"required"`
	ToStationID   string `json:"toStationId" binding:"required"`
}

type moveResponse struct {
	Op          station.Op        `json:"op"`
	Message     string            `json:"message,omitempty"`
	Bike        *bikeResponse     `json:"bike,omitempty"`
	Origin      *station.Snapshot `json:"origin,omitempty"`
	Destination *station.Snapshot `json:"destination,omitempty"`
}

func (a *API) manualMoveHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	fromID, err := uuid.Parse(req.FromStationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "fromStationId must be a UUID"})
		return
	}
	toID, err := uuid.Parse(req.ToStationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "toStationId must be a UUID"})
		return
	}

	res := a.m.ManualMove(c, req.BikeLabel, fromID, toID, uid)
	if !res.Success {
		c.JSON(kindStatus(res.Kind), gin.H{
			"code":        res.Op,
			"kind":        res.Kind,
			"message":     res.Message,
			"origin":      res.Origin,
			"destination": res.Destination,
		})
		return
	}

	logger.InfoContext(c, "bike relocated",
		"bike", req.BikeLabel,
		"from", res.Origin.Name,
		"to", res.Destination.Name,
		"operator", uid,
	)

	resp := moveResponse{
		Op:          res.Op,
		Message:     res.Message,
		Origin:      res.Origin,
		Destination: res.Destination,
	}
	if res.Bike != nil {
		br := toBikeResponse(*res.Bike)
		resp.Bike = &br
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) validateHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	report := a.m.ValidateSystemState()
	if !report.Consistent {
		logger.WarnContext(c, "fleet state inconsistent",
			"globalIssues", len(report.Global),
			"stationsWithIssues", len(report.Stations),
		)
	}

	c.JSON(http.StatusOK, report)
}
