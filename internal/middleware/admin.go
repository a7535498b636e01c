package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/pkg/jwt"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

const ContextSubjectKey = "subject"

// AdminAuth requires an HS256 bearer token carrying the admin role. With an
// empty secret every request passes.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, "unauthorized", "missing authorization")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, "unauthorized", "invalid authorization")
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil || claims.Role != jwt.RoleAdmin {
			response.Error(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Next()
	}
}
