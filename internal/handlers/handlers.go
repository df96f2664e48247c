package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "eventix/internal/errors"
	"eventix/internal/middleware"
	"eventix/internal/models"
	"eventix/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// errorStatuses maps domain errors to the status and message the client sees
var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{apperrors.ErrEventNotFound, http.StatusNotFound, "Event not found"},
	{apperrors.ErrBookingNotFound, http.StatusNotFound, "Booking not found"},
	{apperrors.ErrInsufficientTickets, http.StatusBadRequest, "Not enough tickets available"},
	{apperrors.ErrInvalidTicketCount, http.StatusBadRequest, "Ticket count must be at least 1"},
	{apperrors.ErrInvalidEvent, http.StatusBadRequest, "Invalid event data"},
	{apperrors.ErrBookingNotPayable, http.StatusBadRequest, "Booking cannot be paid"},
	{apperrors.ErrEventHasBookings, http.StatusConflict, "Event has bookings and cannot be deleted"},
	{apperrors.ErrAmountBelowMinimum, http.StatusBadRequest, "Booking total is below the payment minimum"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "User not authorized"},
	{apperrors.ErrForbidden, http.StatusForbidden, "Not authorized as an admin"},
	{apperrors.ErrInvalidSignature, http.StatusBadRequest, "Webhook Error: invalid signature"},
	{apperrors.ErrPaymentNotConfigured, http.StatusInternalServerError, "Payment provider is not configured"},
	{apperrors.ErrPaymentProvider, http.StatusInternalServerError, "Payment provider error"},
	{apperrors.ErrSearchDisabled, http.StatusServiceUnavailable, "Search is not available"},
}

// respondError writes the mapped response for a domain error and a logged
// 500 for anything else
func respondError(c *gin.Context, err error, fallback string) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				slog.Error(fallback, "error", err, "path", c.FullPath())
			}
			c.JSON(m.status, models.MessageResponse{Message: m.message})
			return
		}
	}

	slog.Error(fallback, "error", err, "path", c.FullPath())
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.MessageResponse{Message: fallback})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.MessageResponse{Message: err.Error()})
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: middleware.UserID(c),
		Role:   middleware.UserRole(c),
	}
}
