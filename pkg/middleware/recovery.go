package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nishant-gupta/smartkosh-sub000/pkg/response"
)

// Recovery converts panics into a 500 response instead of killing the server.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", c.Request.URL.Path)
				response.InternalError(c, "Internal server error", "An unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}
