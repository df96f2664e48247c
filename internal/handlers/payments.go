package handlers

import (
	"net/http"

	"eventix/internal/middleware"
	"eventix/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

// CreateCheckoutSession - POST /api/payment/create-checkout-session
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.services.Payments.CreateCheckoutSession(c.Request.Context(), middleware.UserID(c), req.BookingID)
	if err != nil {
		respondError(c, err, "Failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, models.CheckoutSessionResponse{ID: session.ID, URL: session.URL})
}

// PaymentWebhook - POST /api/payment/webhook
// The signature covers the exact bytes sent, so the body is read raw
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.MessageResponse{Message: "Webhook Error: unreadable body"})
		return
	}

	if _, err := h.services.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		respondError(c, err, "Failed to process webhook")
		return
	}

	c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
