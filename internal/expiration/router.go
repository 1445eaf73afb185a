package expiration

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupExpirationRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// ADMIN ROUTES

	sweeps := rg.Group("/admin/sweeps")
	sweeps.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		sweeps.POST("", controller.TriggerSweep)     // POST /api/v1/admin/sweeps
		sweeps.GET("/status", controller.GetStatus) // GET /api/v1/admin/sweeps/status
	}
}
