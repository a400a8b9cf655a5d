package handler

import (
	"strings"
	"time"

	"loyaltysystem/internal/model"
	"loyaltysystem/internal/service"
	"loyaltysystem/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userContextKey = "currentUser"

// LoggerMiddleware logs one line per request through the global zap logger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		zap.L().Info("http request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
	}
}

// RecoveryMiddleware keeps a panicking handler from taking the process down.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				zap.L().Error("panic in handler", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// APIKeyMiddleware gates the API to known mobile builds. Orthogonal to user
// auth: the key identifies the app, the bearer token identifies the user.
func APIKeyMiddleware(keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		if _, ok := allowed[c.GetHeader("X-API-Key")]; !ok {
			response.Forbidden(c, "invalid API key")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthMiddleware validates the bearer token and stashes the user for
// handlers that only read state. The redemption endpoint does not use it:
// the engine authenticates as its own first gate.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.ValidateToken(c.Request.Context(), bearerToken(c), time.Now())
		if err != nil {
			response.Rejected(c, 401, response.ReasonUnauthorized)
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func currentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
