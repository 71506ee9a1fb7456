package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	stripecustomer "github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/customersession"
	"github.com/stripe/stripe-go/v84/setupintent"

	"github.com/semanticallynull/dockshare-backend/customer"
	"github.com/semanticallynull/dockshare-backend/internal/middleware"
)

// getOrCreateCustomer looks up the rider's account, creating it on first
// contact.
func (a *API) getOrCreateCustomer(uid string) (*customer.Customer, error) {
	cust, err := a.cust.GetCustomerByAuth0ID(uid)
	if errors.Is(err, customer.ErrNotFound) {
		return a.cust.CreateCustomer(uid)
	}
	return cust, err
}

type meResponse struct {
	ID                 uuid.UUID     `json:"id"`
	Email              string        `json:"email,omitempty"`
	Name               string        `json:"name,omitempty"`
	Tier               customer.Tier `json:"tier"`
	TierMultiplier     float64       `json:"tierMultiplier"`
	FlexBalance        int           `json:"flexBalance"`
	LifetimeFlexEarned int           `json:"lifetimeFlexEarned"`
}

func (a *API) meHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	cust, err := a.getOrCreateCustomer(uid)
	if err != nil {
		logger.ErrorContext(c, "failed to load customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Refresh the profile from the tenant when the caller brought a token.
	// A failed fetch is not worth failing the request over.
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if a.auth0 != nil && token != "" {
		if ui, err := a.auth0.GetUserInfo(c, token); err != nil {
			logger.WarnContext(c, "failed to fetch user info", "error", err)
		} else if ui.Email != cust.Email.String || ui.Name != cust.Name.String {
			if err := a.cust.UpdateProfile(c, uid, ui.Email, ui.Name); err != nil {
				logger.WarnContext(c, "failed to update profile", "error", err)
			} else {
				cust.Email.String, cust.Email.Valid = ui.Email, ui.Email != ""
				cust.Name.String, cust.Name.Valid = ui.Name, ui.Name != ""
			}
		}
	}

	tier := cust.Tier()
	c.JSON(http.StatusOK, meResponse{
		ID:                 cust.ID,
		Email:              cust.Email.String,
		Name:               cust.Name.String,
		Tier:               tier,
		TierMultiplier:     tier.Multiplier(),
		FlexBalance:        cust.FlexBalance,
		LifetimeFlexEarned: cust.LifetimeFlexEarned,
	})
}

func (a *API) createCustomerSession(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	if a.stripeKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "BILLING_DISABLED", "message": "Billing is not enabled"})
		return
	}

	cust, err := a.getOrCreateCustomer(uid)
	if err != nil {
		logger.ErrorContext(c, "failed to load customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !cust.StripeID.Valid {
		stripeCustomer, err := stripecustomer.New(&stripe.CustomerParams{
			Metadata: map[string]string{
				"auth0_id": uid,
				"id":       cust.ID.String(),
			},
		})
		if err != nil {
			logger.ErrorContext(c, "failed to create stripe customer", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := a.cust.AddStripeIDToCustomer(uid, stripeCustomer.ID); err != nil {
			logger.ErrorContext(c, "failed to save stripe customer id", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		cust.StripeID.String, cust.StripeID.Valid = stripeCustomer.ID, true
	}

	csParams := &stripe.CustomerSessionParams{
		Customer: stripe.String(cust.StripeID.String),
	}
	csParams.AddExtra("components[customer_sheet][enabled]", "true")
	csParams.AddExtra("components[customer_sheet][features][payment_method_remove]", "enabled")
	cs, err := customersession.New(csParams)
	if err != nil {
		logger.ErrorContext(c, "failed to create customer session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, struct {
		CustomerID   string `json:"customerId"`
		ClientSecret string `json:"clientSecret"`
	}{
		CustomerID:   cust.StripeID.String,
		ClientSecret: cs.ClientSecret,
	})
}

func (a *API) createSetupIntent(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	if a.stripeKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "BILLING_DISABLED", "message": "Billing is not enabled"})
		return
	}

	cust, err := a.getOrCreateCustomer(uid)
	if err != nil {
		logger.ErrorContext(c, "failed to load customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !cust.StripeID.Valid {
		c.JSON(http.StatusPreconditionFailed, gin.H{"state": "require customer session"})
		return
	}

	si, err := setupintent.New(&stripe.SetupIntentParams{
		Customer: stripe.String(cust.StripeID.String),
		AutomaticPaymentMethods: &stripe.SetupIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	})
	if err != nil {
		logger.ErrorContext(c, "failed to create setup intent", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, struct {
		SetupIntent string `json:"setupIntent"`
	}{
		SetupIntent: si.ClientSecret,
	})
}

func (a *API) preRentalHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	// Without billing configured every rider passes the payment check.
	if a.stripeKey == "" {
		c.JSON(http.StatusOK, gin.H{"paymentMethod": nil})
		return
	}

	cust, err := a.getOrCreateCustomer(uid)
	if err != nil {
		logger.ErrorContext(c, "failed to load customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if !cust.StripeID.Valid {
		c.JSON(http.StatusPreconditionFailed, gin.H{"state": "require payment method"})
		return
	}

	result := stripecustomer.ListPaymentMethods(&stripe.CustomerListPaymentMethodsParams{
		Customer: stripe.String(cust.StripeID.String),
	})
	if result.Err() != nil {
		logger.ErrorContext(c, "failed to list payment methods", "error", result.Err())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if result.Next() {
		c.JSON(http.StatusOK, gin.H{"paymentMethod": result.PaymentMethod().ID})
		return
	}

	c.JSON(http.StatusPreconditionFailed, gin.H{"state": "require payment method"})
}
