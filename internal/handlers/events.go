package handlers

import (
	"net/http"
	"strconv"

	"eventix/internal/models"

	"github.com/gin-gonic/gin"
)

// ListEvents - GET /api/events?page&limit&category
func (h *Handlers) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	filter := models.EventFilter{
		Category: c.Query("category"),
		Page:     page,
		Limit:    limit,
	}

	response, err := h.services.Events.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchEvents - GET /api/events/search?q
func (h *Handlers) SearchEvents(c *gin.Context) {
	events, err := h.services.Events.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, "Failed to search events")
		return
	}

	c.JSON(http.StatusOK, models.SearchEventsResponse{Events: events})
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	event, err := h.services.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// CreateEvent - POST /api/events (admin)
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(), actor(c), &req)
	if err != nil {
		respondError(c, err, "Failed to create event")
		return
	}

	c.JSON(http.StatusCreated, event)
}

// UpdateEvent - PUT /api/events/:id (organizer or admin)
func (h *Handlers) UpdateEvent(c *gin.Context) {
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	event, err := h.services.Events.Update(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "Failed to update event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// DeleteEvent - DELETE /api/events/:id (organizer or admin)
func (h *Handlers) DeleteEvent(c *gin.Context) {
	if err := h.services.Events.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete event")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Event removed"})
}
