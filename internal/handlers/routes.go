package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/pkg/jwt"
)

// Handlers groups the HTTP handlers of the reservation engine
type Handlers struct {
	Checkout    *CheckoutHandler
	Payment     *PaymentHandler
	Listing     *ListingHandler
	Reservation *ReservationHandler
	AdminAlert  *AdminAlertHandler
}

// RegisterRoutes mounts the /api/v1 routes. Auth is attached per route:
// the webhook authenticates by signature and must never see the JWT check.
func RegisterRoutes(router *gin.Engine, h *Handlers, jwtService *jwt.Service) {
	requireAuth := middleware.AuthMiddleware(jwtService)
	optionalAuth := middleware.OptionalAuthMiddleware(jwtService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequestMeta())

	properties := v1.Group("/properties")
	{
		properties.GET("", optionalAuth, h.Listing.Search)
		properties.GET("/:id/availability", h.Listing.Availability)
		properties.GET("/:id/reservations", h.Listing.Reservations)
		properties.POST("/:id/toggle-favorite", requireAuth, h.Listing.ToggleFavorite)
	}

	v1.POST("/availability", h.Listing.BatchAvailability)
	v1.POST("/checkout", requireAuth, h.Checkout.CreateCheckout)
	v1.GET("/reservations", requireAuth, h.Reservation.ListMine)

	payments := v1.Group("/payments")
	{
		payments.GET("/success", optionalAuth, h.Payment.PaymentSuccess)
		payments.GET("/cancel", h.Payment.PaymentCancel)
		payments.POST("/webhook", h.Payment.Webhook)
	}

	admin := v1.Group("/admin", requireAuth, middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("/booking-alerts", h.AdminAlert.List)
		admin.POST("/booking-alerts/:id/resolve", h.AdminAlert.Resolve)
	}
}
