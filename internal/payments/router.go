package payments

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// HOLDER ROUTES

	orders := rg.Group("/orders")
	orders.Use(middleware.OptionalAuthWithConfig(cfg), middleware.RequireHolder())
	{
		orders.POST("/:id/payment-intent", controller.CreateIntent) // POST /api/v1/orders/:id/payment-intent
	}

	// PROVIDER ROUTES (authenticated by signature)

	rg.POST("/payments/webhook", controller.Webhook) // POST /api/v1/payments/webhook
}
