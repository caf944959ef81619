package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/consultation-api/internal/services"
)

const actorKey = "actor"

// CredentialResolver turns a bearer token into the caller's identity.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context, token string) (*services.Actor, error)
}

// AuthMiddleware requires a valid bearer token and stores the resolved actor on
// the context.
func AuthMiddleware(resolver CredentialResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > len("bearer ") && strings.EqualFold(authHeader[:len("bearer ")], "bearer ") {
			token = strings.TrimSpace(authHeader[len("bearer "):])
		}

		actor, err := resolver.ResolveCredential(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": services.Message(err),
					"code":  services.ErrUnauthenticated.Error(),
				})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  services.ErrDependencyUnavailable.Error(),
			})
			return
		}

		c.Set(actorKey, *actor)
		c.Next()
	}
}

// CurrentActor returns the actor stored by AuthMiddleware.
func CurrentActor(c *gin.Context) (services.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return services.Actor{}, false
	}
	actor, ok := v.(services.Actor)
	return actor, ok
}
