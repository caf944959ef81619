package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Consultation portal API is running."})
}

// Health runs every registered check with a short deadline.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Checks {
		err := check(ctx)
		body[name] = err == nil
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			h.Logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		}
	}
	c.JSON(status, body)
}
