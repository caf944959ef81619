package handlers

import (
	"github.com/gin-gonic/gin"
)

// Routes mounts the API on group. authLimit guards the credential endpoints and
// auth protects everything a caller must be signed in for.
func (h *Handler) Routes(group *gin.RouterGroup, auth, authLimit gin.HandlerFunc) {
	authRoutes := group.Group("/auth", authLimit)
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	facultyRoutes := group.Group("/faculty")
	{
		facultyRoutes.GET("", h.ListFaculty)
		facultyRoutes.GET("/:id", h.GetFaculty)
	}

	bookingRoutes := group.Group("/bookings", auth)
	{
		bookingRoutes.POST("", h.CreateBooking)
		bookingRoutes.GET("/my", h.GetMyBookings)
		bookingRoutes.PUT("/:id/status", h.UpdateBookingStatus)
		bookingRoutes.DELETE("/:id", h.CancelBooking)
	}

	profileRoutes := group.Group("/profile", auth)
	{
		profileRoutes.GET("/me", h.GetCurrentUser)
		profileRoutes.PUT("/faculty", h.UpdateFacultyProfile)
		profileRoutes.PUT("/student", h.UpdateStudentProfile)
	}
}
