package middleware

import (
	"net/http"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/gin-gonic/gin"
)

// DefaultAdminLevel is the member level treated as admin when config leaves it unset
const DefaultAdminLevel = 10

// RequireAdmin checks that the authenticated user has at least the given level
func RequireAdmin(minLevel int) gin.HandlerFunc {
	if minLevel <= 0 {
		minLevel = DefaultAdminLevel
	}
	return func(c *gin.Context) {
		if GetUserLevel(c) < minLevel {
			common.ErrorResponse(c, http.StatusForbidden, "관리자 권한이 필요합니다", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string, err error) {
	common.ErrorResponse(c, http.StatusUnauthorized, message, err)
	c.Abort()
}
