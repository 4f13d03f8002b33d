package middleware

import (
	"errors"
	"strings"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys
const (
	ctxUserID   = "userID"
	ctxNickname = "nickname"
	ctxLevel    = "level"
	ctxGuestKey = "guestKey"
)

// GuestCookie holds the guest session id used for poll uniqueness and presence
const GuestCookie = "forum_sid"

const guestCookieMaxAge = 60 * 60 * 24 * 30

// JWTAuth JWT authentication middleware
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Missing authorization header", nil)
			return
		}

		// 2. Parse Bearer token
		tokenString, ok := bearerToken(authHeader)
		if !ok {
			abortUnauthorized(c, "Invalid authorization header format", nil)
			return
		}

		// 3. Verify token
		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				abortUnauthorized(c, "Token expired", err)
			} else {
				abortUnauthorized(c, "Invalid token", err)
			}
			return
		}

		// 4. Store user info in context
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth sets the user when a valid token is present and otherwise
// continues as a guest, issuing a guest session cookie if there is none
func OptionalJWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := jwtManager.VerifyToken(tokenString); err == nil {
				setClaims(c, claims)
				c.Next()
				return
			}
		}

		sid, err := c.Cookie(GuestCookie)
		if err != nil || sid == "" {
			sid = uuid.NewString()
			c.SetCookie(GuestCookie, sid, guestCookieMaxAge, "/", "", c.Request.TLS != nil, true)
		}
		c.Set(ctxGuestKey, sid)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxNickname, claims.Nickname)
	c.Set(ctxLevel, claims.Level)
}

// GetUserID extracts user ID from context, 0 for guests
func GetUserID(c *gin.Context) uint64 {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0
	}
	if id, ok := userID.(uint64); ok {
		return id
	}
	return 0
}

// GetUserLevel extracts user level from context
func GetUserLevel(c *gin.Context) int {
	level, exists := c.Get(ctxLevel)
	if !exists {
		return 0
	}
	if lvl, ok := level.(int); ok {
		return lvl
	}
	return 0
}

// GetNickname extracts nickname from context
func GetNickname(c *gin.Context) string {
	nickname, exists := c.Get(ctxNickname)
	if !exists {
		return ""
	}
	if str, ok := nickname.(string); ok {
		return str
	}
	return ""
}

// GetGuestKey returns the guest session id, or "" for members and requests without one
func GetGuestKey(c *gin.Context) string {
	return c.GetString(ctxGuestKey)
}

// GetActor builds the request identity for the service layer
func GetActor(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:       GetUserID(c),
		Name:     GetNickname(c),
		GuestKey: GetGuestKey(c),
	}
}
