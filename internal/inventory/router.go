package inventory

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupInventoryRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// PUBLIC SEAT MAP

	shows := rg.Group("/shows")
	{
		shows.GET("/:showId/seats", controller.GetSeatMap) // GET /api/v1/shows/:showId/seats
	}

	// ADMIN HOUSE SEATS

	adminShows := rg.Group("/admin/shows")
	adminShows.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		adminShows.POST("/:showId/holds", controller.HoldSeats)          // POST /api/v1/admin/shows/:showId/holds
		adminShows.DELETE("/:showId/holds", controller.ReleaseHeldSeats) // DELETE /api/v1/admin/shows/:showId/holds
	}
}
