package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/response"
)

// RequirePermission lets the request through when the caller's role grants perm.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.Role.Can(perm) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing permission "+string(perm)))
			c.Abort()
			return
		}
		c.Next()
	}
}
