package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/internal/services"
)

// CheckoutHandler opens payment sessions for booking requests
type CheckoutHandler struct {
	checkout *services.CheckoutService
	logger   *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *services.CheckoutService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// CreateCheckout handles POST /api/v1/checkout
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "MISSING_USER_CONTEXT", Message: "Authentication required"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// binding already checked the formats
	propertyID, _ := uuid.Parse(req.PropertyID)
	start, _ := models.ParseDate(req.StartDate)
	end, _ := models.ParseDate(req.EndDate)

	resp, err := h.checkout.CreateCheckout(c.Request.Context(), &services.CheckoutInput{
		PropertyID:  propertyID,
		StartDate:   start,
		EndDate:     end,
		Guests:      req.Guests,
		ClientTotal: req.TotalPrice,
		Payer: models.PayerSummary{
			ID:    userCtx.UserID,
			Email: userCtx.Email,
			Name:  userCtx.Name,
		},
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
