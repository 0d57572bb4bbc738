package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/internal/services"
)

// errorResponse is the JSON body of every non-2xx response
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps the booking error taxonomy onto HTTP statuses
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var validationErr *models.ValidationError
	var authErr *models.AuthenticityError
	var notFoundErr *models.NotFoundError
	var processorErr *services.ProcessorError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Code:    validationErr.Code,
			Message: validationErr.Message,
		})
	case errors.As(err, &authErr):
		c.JSON(http.StatusPaymentRequired, errorResponse{
			Error:   "payment_not_verified",
			Code:    "PAYMENT_NOT_VERIFIED",
			Message: "Payment could not be verified with the payment processor",
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Code:    "NOT_FOUND",
			Message: notFoundErr.Error(),
		})
	case errors.As(err, &processorErr):
		logger.WithError(err).Error("Payment processor unavailable")
		c.JSON(http.StatusBadGateway, errorResponse{
			Error:   "processor_unavailable",
			Code:    "PAYMENT_PROCESSOR_ERROR",
			Message: "Payment processor is unavailable. Please try again.",
		})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Code:    "INTERNAL_ERROR",
			Message: "Something went wrong. Please try again later.",
		})
	}
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Error:   "invalid_request",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}
