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

// ListingHandler serves property search, availability and favorites
type ListingHandler struct {
	listings     *services.ListingService
	availability *services.AvailabilityService
	queries      *services.ReservationQueryService
	logger       *logrus.Logger
}

// NewListingHandler creates a new listing handler
func NewListingHandler(
	listings *services.ListingService,
	availability *services.AvailabilityService,
	queries *services.ReservationQueryService,
	logger *logrus.Logger,
) *ListingHandler {
	return &ListingHandler{
		listings:     listings,
		availability: availability,
		queries:      queries,
		logger:       logger,
	}
}

// availabilityQuery binds GET /properties/:id/availability
type availabilityQuery struct {
	StartDate string `form:"start_date" binding:"required,isodate"`
	EndDate   string `form:"end_date" binding:"required,isodate"`
}

// Search handles GET /api/v1/properties
func (h *ListingHandler) Search(c *gin.Context) {
	var query models.ListingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	filter, err := query.ToFilter()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp, err := h.listings.Search(c.Request.Context(), filter, middleware.CallerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Availability handles GET /api/v1/properties/:id/availability
func (h *ListingHandler) Availability(c *gin.Context) {
	propertyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var query availabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	start, _ := models.ParseDate(query.StartDate)
	end, _ := models.ParseDate(query.EndDate)

	available, err := h.availability.IsAvailable(c.Request.Context(), propertyID, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.AvailabilityResponse{
		PropertyID: propertyID,
		StartDate:  models.FormatDate(start),
		EndDate:    models.FormatDate(end),
		Available:  available,
	})
}

// BatchAvailability handles POST /api/v1/availability. It answers for a set of
// candidate properties, e.g. the ones a search page is showing.
func (h *ListingHandler) BatchAvailability(c *gin.Context) {
	var req models.BatchAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	start, _ := models.ParseDate(req.StartDate)
	end, _ := models.ParseDate(req.EndDate)

	free, err := h.availability.FilterAvailable(c.Request.Context(), req.PropertyIDs, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	available := make([]uuid.UUID, 0, len(free))
	for _, id := range req.PropertyIDs {
		if _, ok := free[id]; ok {
			available = append(available, id)
			delete(free, id)
		}
	}

	c.JSON(http.StatusOK, models.BatchAvailabilityResponse{
		StartDate: models.FormatDate(start),
		EndDate:   models.FormatDate(end),
		Available: available,
	})
}

// Reservations handles GET /api/v1/properties/:id/reservations.
// Only paid reservations are listed; they drive the booking calendar.
func (h *ListingHandler) Reservations(c *gin.Context) {
	propertyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	dates, err := h.queries.PropertyCalendar(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": dates})
}

// ToggleFavorite handles POST /api/v1/properties/:id/toggle-favorite
func (h *ListingHandler) ToggleFavorite(c *gin.Context) {
	propertyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	caller := middleware.CallerID(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "MISSING_USER_CONTEXT", Message: "Authentication required"})
		return
	}

	favorited, err := h.listings.ToggleFavorite(c.Request.Context(), propertyID, *caller)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.ToggleFavoriteResponse{IsFavorited: favorited})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Code:    "INVALID_ID",
			Message: "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
