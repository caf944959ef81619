package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/consultation-api/internal/services"
)

type updateFacultyRequest struct {
	Department     *string   `json:"department"`
	Title          *string   `json:"title"`
	Bio            *string   `json:"bio"`
	AvailableSlots *slotList `json:"availableSlots"`
}

type updateStudentRequest struct {
	Name              string `json:"name"`
	StudentDepartment string `json:"studentDepartment"`
	BatchNo           string `json:"batchNo"`
}

func (h *Handler) UpdateFacultyProfile(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req updateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	upd := services.FacultyProfileUpdate{
		Department: req.Department,
		Title:      req.Title,
		Bio:        req.Bio,
	}
	if req.AvailableSlots != nil {
		slots := string(*req.AvailableSlots)
		upd.AvailableSlots = &slots
	}

	p, err := h.Profiles.UpdateFaculty(c.Request.Context(), actor, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully.", "faculty": p})
}

// UpdateStudentProfile answers with a fresh token so the client session picks up
// the new details.
func (h *Handler) UpdateStudentProfile(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.Profiles.UpdateStudent(c.Request.Context(), actor, services.StudentProfileUpdate{
		Name:              req.Name,
		StudentDepartment: req.StudentDepartment,
		BatchNo:           req.BatchNo,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{
		AccountSummary: res.Account,
		Token:          res.Token,
		Message:        "Profile updated successfully.",
	})
}

func (h *Handler) GetCurrentUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	me, err := h.Profiles.Me(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}
