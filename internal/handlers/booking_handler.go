package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/consultation-api/internal/middleware"
	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/services"
)

// Accepted timestamp layouts. Values without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseTime(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &services.Error{
		Kind: services.ErrValidationFailed,
		Msg:  fmt.Sprintf("Invalid %s, use RFC3339 (e.g. 2024-05-01T10:00:00Z).", field),
	}
}

type createBookingRequest struct {
	FacultyID       string `json:"facultyId" binding:"required"`
	DateTime        string `json:"dateTime" binding:"required"`
	DurationMinutes int    `json:"durationMinutes"`
	Topic           string `json:"topic" binding:"required"`
	StudentMessage  string `json:"studentMessage"`
}

type updateStatusRequest struct {
	Status        string  `json:"status" binding:"required"`
	FinalDateTime *string `json:"finalDateTime"`
	RoomNumber    *string `json:"roomNumber"`
}

// actor is only called behind AuthMiddleware.
func (h *Handler) actor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		h.respondError(c, &services.Error{Kind: services.ErrUnauthenticated, Msg: "Not authorized, no token."})
	}
	return actor, ok
}

func (h *Handler) CreateBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	when, err := parseTime("dateTime", req.DateTime)
	if err != nil {
		h.respondError(c, err)
		return
	}

	b, err := h.Bookings.Create(c.Request.Context(), actor, services.CreateBookingInput{
		FacultyID:       req.FacultyID,
		DateTime:        when,
		DurationMinutes: req.DurationMinutes,
		Topic:           req.Topic,
		StudentMessage:  req.StudentMessage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Booking request submitted successfully.", "booking": b})
}

func (h *Handler) GetMyBookings(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	views, err := h.Bookings.ListMine(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	upd := services.StatusUpdate{
		Status:     models.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		RoomNumber: req.RoomNumber,
	}
	if req.FinalDateTime != nil && strings.TrimSpace(*req.FinalDateTime) != "" {
		at, err := parseTime("finalDateTime", *req.FinalDateTime)
		if err != nil {
			h.respondError(c, err)
			return
		}
		upd.FinalDateTime = &at
	}

	b, err := h.Bookings.SetStatus(c.Request.Context(), actor, c.Param("id"), upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Booking status updated to %s.", b.Status), "booking": b})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	b, err := h.Bookings.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled successfully.", "booking": b})
}
