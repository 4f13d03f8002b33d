package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Cache-Control":           "no-store",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

// SecurityHeaders sets response headers for JSON endpoints. The swagger UI
// keeps its own CSP since it serves scripts and styles.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		docs := strings.HasPrefix(c.Request.URL.Path, "/swagger/")
		for name, value := range apiHeaders {
			if docs && name == "Content-Security-Policy" {
				continue
			}
			c.Header(name, value)
		}
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
