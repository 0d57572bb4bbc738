package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/internal/services"
)

// maxWebhookBody caps the webhook payload read into memory. Larger bodies
// are refused with 413 rather than truncated.
const maxWebhookBody = 512 << 10

// PaymentHandler adapts the two payment confirmation paths onto Reconcile
type PaymentHandler struct {
	reconciler *services.ReconciliationService
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(reconciler *services.ReconciliationService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, logger: logger}
}

// PaymentSuccess handles GET /api/v1/payments/success?session_id=...
// The guest's browser lands here after checkout. The session is re-fetched
// from the processor before anything is recorded.
func (h *PaymentHandler) PaymentSuccess(c *gin.Context) {
	event := models.RedirectConfirmation{SessionID: c.Query("session_id")}
	event.Payer = middleware.CallerID(c)

	result, err := h.reconciler.Reconcile(c.Request.Context(), event)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.PaymentSuccessResponse{
		Success:     true,
		Reservation: result.Summary(),
		Conflict:    result.Reservation.ConflictFlagged,
	})
}

// PaymentCancel handles GET /api/v1/payments/cancel
func (h *PaymentHandler) PaymentCancel(c *gin.Context) {
	c.JSON(http.StatusOK, models.PaymentCancelResponse{
		Success: false,
		Message: "Payment was canceled",
	})
}

// Webhook handles POST /api/v1/payments/webhook.
// Only a bad signature and transient failures are answered with an error
// status; everything the processor cannot fix by retrying is acknowledged.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.WithField("limit", tooLarge.Limit).Error("Webhook body exceeds size limit")
			c.JSON(http.StatusRequestEntityTooLarge, models.WebhookAckResponse{Received: false})
			return
		}
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, models.WebhookAckResponse{Received: false})
		return
	}

	event := models.WebhookConfirmation{
		Payload:   payload,
		Signature: c.GetHeader("Stripe-Signature"),
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), event)
	switch {
	case err == nil:
		h.logger.WithFields(logrus.Fields{
			"reservation_id": result.Reservation.ID,
			"outcome":        result.Outcome,
		}).Info("Webhook reconciled")
		c.JSON(http.StatusOK, models.WebhookAckResponse{Received: true})
	case models.IsAuthenticityError(err):
		c.JSON(http.StatusBadRequest, models.WebhookAckResponse{Received: false})
	case errors.Is(err, models.ErrEventIgnored):
		c.JSON(http.StatusOK, models.WebhookAckResponse{Received: true})
	case models.IsValidationError(err), models.IsNotFoundError(err):
		h.logger.WithError(err).Warn("Webhook acknowledged without a reservation")
		c.JSON(http.StatusOK, models.WebhookAckResponse{Received: true})
	default:
		h.logger.WithError(err).Error("Webhook reconciliation failed; processor will retry")
		c.JSON(http.StatusInternalServerError, models.WebhookAckResponse{Received: false})
	}
}
