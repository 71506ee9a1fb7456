package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/invoice"
	"go.opentelemetry.io/otel"

	"github.com/semanticallynull/dockshare-backend/internal/middleware"
	"github.com/semanticallynull/dockshare-backend/rental"
)

// Pricing, in cents. The tax lines are inclusive VAT at the reduced rate.
const (
	unlockFeeCents = 100
	perMinuteCents = 15
)

type rentalResponse struct {
	ID              uuid.UUID     `json:"id"`
	BikeLabel       string        `json:"bikeLabel"`
	OriginStationID uuid.UUID     `json:"originStationId"`
	OriginStation   string        `json:"originStation,omitempty"`
	EndStationID    *uuid.UUID    `json:"endStationId,omitempty"`
	EndStation      string        `json:"endStation,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	Status          rental.Status `json:"status"`
	Minutes         int           `json:"minutes"`
}

func toRentalResponse(r rental.Rental, now time.Time) rentalResponse {
	rr := rentalResponse{
		ID:              r.ID,
		BikeLabel:       r.BikeLabel,
		OriginStationID: r.OriginStationID,
		EndStationID:    r.EndStationID,
		StartedAt:       r.StartedAt,
		Status:          r.Status(),
		Minutes:         r.Minutes(now),
	}
	if r.OriginStation.Valid {
		rr.OriginStation = r.OriginStation.String
	}
	if r.EndStation.Valid {
		rr.EndStation = r.EndStation.String
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time
		rr.EndedAt = &t
	}
	return rr
}

type rentRequest struct {
	StationID string `json:"stationId" binding:"required"`
	BikeLabel string `json:"bikeLabel"`
}

func (a *API) rentHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	var req rentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "stationId must be a UUID"})
		return
	}

	res := a.m.Rent(c, uid, stationID, req.BikeLabel)
	if !res.Success {
		failJSON(c, res)
		return
	}

	logger.InfoContext(c, "rental started",
		slog.String("bike", res.Bike.Label),
		slog.String("station", res.Station.Name),
	)
	c.JSON(http.StatusCreated, toOperationResponse(res, time.Now()))
}

type returnRequest struct {
	StationID string `json:"stationId" binding:"required"`
	BikeLabel string `json:"bikeLabel" binding:"required"`
}

func (a *API) returnHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "stationId must be a UUID"})
		return
	}

	res := a.m.Return(c, uid, req.BikeLabel, stationID)
	if !res.Success {
		failJSON(c, res)
		return
	}

	logger.InfoContext(c, "rental completed",
		slog.String("bike", req.BikeLabel),
		slog.String("station", res.Station.Name),
		slog.Int("minutes", res.Rental.Minutes(time.Now())),
	)

	// Billing never blocks or fails the return. A draft invoice that could
	// not be finalized is picked up from the Stripe dashboard.
	if a.stripeKey != "" {
		mins := res.Rental.Minutes(time.Now())
		go a.invoiceRental(logger, uid, mins)
	}

	c.JSON(http.StatusOK, toOperationResponse(res, time.Now()))
}

// inclusiveVAT splits an amount into the reduced-rate (13.5%) tax portion and
// the taxable remainder.
func inclusiveVAT(amount int64) (tax, taxable int64) {
	taxable = int64(math.Round(float64(amount) / 1.135))
	return amount - taxable, taxable
}

func taxedLine(description string, amount int64) *stripe.InvoiceAddLinesLineParams {
	tax, taxable := inclusiveVAT(amount)
	return &stripe.InvoiceAddLinesLineParams{
		Amount:      stripe.Int64(amount),
		Description: stripe.String(description),
		TaxAmounts: []*stripe.InvoiceAddLinesLineTaxAmountParams{
			{
				Amount:        stripe.Int64(tax),
				TaxableAmount: stripe.Int64(taxable),
				TaxRateData: &stripe.InvoiceAddLinesLineTaxAmountTaxRateDataParams{
					Percentage:  stripe.Float64(13.5),
					Description: stripe.String("VAT - Reduced Rate"),
					DisplayName: stripe.String("VAT - Reduced Rate (13.5%)"),
					Inclusive:   stripe.Bool(true),
				},
			},
		},
	}
}

func (a *API) invoiceRental(logger *slog.Logger, userID string, mins int) {
	cust, err := a.cust.GetCustomerByAuth0ID(userID)
	if err != nil {
		logger.Error("failed to load customer for billing", "error", err)
		return
	}
	if !cust.StripeID.Valid {
		logger.Warn("customer has no stripe id, skipping invoice", "user", userID)
		return
	}

	in, err := invoice.New(&stripe.InvoiceParams{
		Customer: stripe.String(cust.StripeID.String),
	})
	if err != nil {
		logger.Error("failed to create invoice", "error", err)
		return
	}

	lines := []*stripe.InvoiceAddLinesLineParams{
		taxedLine("Rental unlock", unlockFeeCents),
		taxedLine(fmt.Sprintf("Rental - %d minutes", mins), int64(perMinuteCents*mins)),
	}

	total := unlockFeeCents + perMinuteCents*mins
	discount, err := a.cust.SpendFlex(context.Background(), userID, total)
	if err != nil {
		logger.Error("failed to apply flex credit", "error", err)
		discount = 0
	}
	if discount > 0 {
		lines = append(lines, &stripe.InvoiceAddLinesLineParams{
			Amount:      stripe.Int64(int64(-discount)),
			Description: stripe.String("Flex dollar credit"),
		})
	}

	if _, err := invoice.AddLines(in.ID, &stripe.InvoiceAddLinesParams{Lines: lines}); err != nil {
		logger.Error("failed to add lines to invoice", "error", err)
		return
	}
	if _, err := invoice.FinalizeInvoice(in.ID, &stripe.InvoiceFinalizeInvoiceParams{}); err != nil {
		logger.Error("failed to finalize invoice", "error", err)
		return
	}
	if _, err := invoice.Pay(in.ID, nil); err != nil {
		logger.Error("failed to pay invoice", "error", err)
	}
}

type rentalState struct {
	InProgress bool            `json:"inProgress"`
	Rental     *rentalResponse `json:"rental,omitempty"`
}

func (a *API) currentRentalHandler(c *gin.Context) {
	_, span := otel.GetTracerProvider().Tracer("api").Start(c.Request.Context(), "currentRentalHandler")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	r, ok := a.m.CurrentRental(uid)
	if !ok {
		c.JSON(http.StatusOK, rentalState{InProgress: false})
		return
	}

	rr := toRentalResponse(r, time.Now())
	c.JSON(http.StatusOK, rentalState{InProgress: true, Rental: &rr})
}

func (a *API) rentalsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	rentals, err := a.store.RentalsByUser(c, uid)
	if err != nil {
		logger.ErrorContext(c, "failed to list rentals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now()
	resp := make([]rentalResponse, 0, len(rentals))
	for _, r := range rentals {
		resp = append(resp, toRentalResponse(r, now))
	}

	c.JSON(http.StatusOK, resp)
}
