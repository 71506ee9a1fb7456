// Package loyalty credits riders with flex dollars for behavior that helps
// rebalance the fleet, such as returning bikes to under-stocked stations.
package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/semanticallynull/dockshare-backend/customer"
)

// CustomerLedger is the slice of the customer repository the service needs.
type CustomerLedger interface {
	GetCustomerByAuth0ID(auth0ID string) (*customer.Customer, error)
	CreateCustomer(auth0ID string) (*customer.Customer, error)
	CreditFlex(ctx context.Context, auth0ID string, amountCents int) (int, error)
}

type Service struct {
	customers CustomerLedger
	logger    *slog.Logger
}

func NewService(customers CustomerLedger, logger *slog.Logger) *Service {
	return &Service{
		customers: customers,
		logger:    logger,
	}
}

// Award credits amountCents scaled by the rider's tier multiplier and returns
// the new balance. Riders unknown to billing get a customer row on first
// contact.
func (s *Service) Award(ctx context.Context, auth0ID string, amountCents int, reason string, stationID uuid.UUID) (int, error) {
	c, err := s.customers.GetCustomerByAuth0ID(auth0ID)
	if errors.Is(err, customer.ErrNotFound) {
		c, err = s.customers.CreateCustomer(auth0ID)
	}
	if err != nil {
		return 0, err
	}

	credited := int(math.Round(float64(amountCents) * c.Tier().Multiplier()))
	balance, err := s.customers.CreditFlex(ctx, auth0ID, credited)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "awarded flex dollars",
		slog.String("user", auth0ID),
		slog.Int("amount_cents", credited),
		slog.String("reason", reason),
		slog.String("station_id", stationID.String()),
		slog.Int("balance_cents", balance),
	)
	return balance, nil
}
