package orders

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// HOLDER ROUTES (user token or guest session)

	orders := rg.Group("/orders")
	orders.Use(middleware.OptionalAuthWithConfig(cfg), middleware.RequireHolder())
	{
		orders.POST("", controller.CreateOrder)                // POST /api/v1/orders
		orders.GET("/:id", controller.GetOrder)                // GET /api/v1/orders/:id
		orders.POST("/:id/confirm", controller.ConfirmPayment) // POST /api/v1/orders/:id/confirm
		orders.POST("/:id/cancel", controller.CancelOrder)     // POST /api/v1/orders/:id/cancel
	}

	// STAFF ROUTES

	tickets := rg.Group("/tickets")
	tickets.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireRoles(middleware.RoleStaff, middleware.RoleAdmin))
	{
		tickets.POST("/scan", controller.ScanTicket) // POST /api/v1/tickets/scan
	}
}
