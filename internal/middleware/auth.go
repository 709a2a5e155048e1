package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// Authenticator turns a bearer token into an actor.
type Authenticator interface {
	Authenticate(token string) (*model.Actor, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate verifies the bearer token and stores the actor in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		actor, err := m.authenticator.Authenticate(parts[1])
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		handler.SetActor(c, actor)
		c.Next()
	}
}

// RequireRole lets the request through only for actors holding one of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler.Actor(c).Require(roles...); err != nil {
			handler.RespondError(c, err)
			return
		}
		c.Next()
	}
}
