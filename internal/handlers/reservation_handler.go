package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/internal/services"
)

// ReservationHandler lists the caller's reservations
type ReservationHandler struct {
	queries *services.ReservationQueryService
	logger  *logrus.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(queries *services.ReservationQueryService, logger *logrus.Logger) *ReservationHandler {
	return &ReservationHandler{queries: queries, logger: logger}
}

// ListMine handles GET /api/v1/reservations
func (h *ReservationHandler) ListMine(c *gin.Context) {
	caller := middleware.CallerID(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "MISSING_USER_CONTEXT", Message: "Authentication required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, err := h.queries.UserReservations(c.Request.Context(), *caller, page, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": items})
}
