package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/services"
)

var errorStatus = []struct {
	kind   error
	status int
}{
	{services.ErrDomainRejected, http.StatusBadRequest},
	{services.ErrDuplicateEmail, http.StatusBadRequest},
	{services.ErrValidationFailed, http.StatusBadRequest},
	{services.ErrInvalidTransition, http.StatusBadRequest},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrUnauthenticated, http.StatusUnauthorized},
	{services.ErrNotAuthorized, http.StatusForbidden},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrProfileCreationFailed, http.StatusInternalServerError},
	{services.ErrDependencyUnavailable, http.StatusInternalServerError},
}

// respondError writes err as {"error": message, "code": kind}. Errors that
// match no kind, and infrastructure failures, get a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, e := range errorStatus {
		if !errors.Is(err, e.kind) {
			continue
		}
		msg := services.Message(err)
		if e.kind == services.ErrDependencyUnavailable || msg == "" {
			msg = "Internal server error"
		}
		if e.status >= http.StatusInternalServerError {
			h.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(e.status, gin.H{"error": msg, "code": e.kind.Error()})
		return
	}
	h.Logger.Error("Unclassified error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "Internal"})
}

// badRequest reports a body that could not be bound.
func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": services.ErrValidationFailed.Error()})
}
