package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/internal/services"
)

// AdminAlertHandler exposes booking alerts to operators
type AdminAlertHandler struct {
	alerts *services.AlertService
	logger *logrus.Logger
}

// NewAdminAlertHandler creates a new admin alert handler
func NewAdminAlertHandler(alerts *services.AlertService, logger *logrus.Logger) *AdminAlertHandler {
	return &AdminAlertHandler{alerts: alerts, logger: logger}
}

// List handles GET /api/v1/admin/booking-alerts
func (h *AdminAlertHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.alerts.ListUnresolved(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Resolve handles POST /api/v1/admin/booking-alerts/:id/resolve
func (h *AdminAlertHandler) Resolve(c *gin.Context) {
	alertID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userCtx, _ := middleware.GetUserContext(c)

	if err := h.alerts.Resolve(c.Request.Context(), alertID, userCtx.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
