package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/services"
)

// slotList is availableSlots, sent either as free text or as a list of slots.
type slotList string

func (s *slotList) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		*s = slotList(text)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("availableSlots must be a string or an array of strings")
	}
	*s = slotList(strings.Join(list, ", "))
	return nil
}

type RegisterUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`

	StudentDepartment string `json:"studentDepartment"`
	BatchNo           string `json:"batchNo"`

	Department     string   `json:"department"`
	Title          string   `json:"title"`
	Bio            string   `json:"bio"`
	AvailableSlots slotList `json:"availableSlots"`
}

// roleFields keeps only the fields that belong to the requested role.
func (r RegisterUserRequest) roleFields() (models.RoleFields, error) {
	switch models.Role(strings.ToLower(strings.TrimSpace(r.Role))) {
	case "", models.RoleStudent:
		return models.StudentFields{Department: r.StudentDepartment, BatchNo: r.BatchNo}, nil
	case models.RoleFaculty:
		return models.FacultyFields{
			Department:     r.Department,
			Title:          r.Title,
			Bio:            r.Bio,
			AvailableSlots: string(r.AvailableSlots),
		}, nil
	}
	return nil, &services.Error{Kind: services.ErrValidationFailed, Msg: "Role must be student or faculty."}
}

type authResponse struct {
	models.AccountSummary
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fields, err := req.roleFields()
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.Auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Fields:   fields,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{
		AccountSummary: res.Account,
		Token:          res.Token,
		Message:        "Registration successful.",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": services.ErrValidationFailed.Error()})
		return
	}

	res, err := h.Auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{AccountSummary: res.Account, Token: res.Token})
}
