package reservations

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// HOLDER ROUTES (user token or guest session)

	reservations := rg.Group("/reservations")
	reservations.Use(middleware.OptionalAuthWithConfig(cfg), middleware.RequireHolder())
	{
		reservations.POST("", controller.Reserve)              // POST /api/v1/reservations
		reservations.POST("/cart", controller.ReserveCart)     // POST /api/v1/reservations/cart
		reservations.GET("/:token", controller.GetStatus)      // GET /api/v1/reservations/:token
		reservations.POST("/:token/extend", controller.Extend) // POST /api/v1/reservations/:token/extend
		reservations.DELETE("/:token", controller.Release)     // DELETE /api/v1/reservations/:token
	}
}
