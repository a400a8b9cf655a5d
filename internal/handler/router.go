package handler

import (
	"loyaltysystem/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and routes.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	api.Use(APIKeyMiddleware(cfg.Security.APIKeys))
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		// The engine authenticates the scan itself; no auth middleware here.
		api.POST("/scan", h.ScanCode)

		authed := api.Group("")
		authed.Use(AuthMiddleware(h.authService))
		{
			authed.POST("/logout", h.Logout)

			user := authed.Group("/user")
			{
				user.GET("/balance", h.GetBalance)
				user.GET("/transactions", h.GetTransactions)
				user.GET("/scans", h.GetScans)
			}

			authed.POST("/points/spend", h.SpendPoints)

			qr := authed.Group("/qr")
			{
				qr.POST("/create", h.CreateCode)
				qr.POST("/revoke", h.RevokeCode)
			}

			authed.GET("/statistics", h.GetStatistics)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
