package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
	"github.com/noah-isme/office-scheduler/pkg/response"
)

// RequireRoles rejects authenticated callers whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[identity.Role]; !permitted {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}
