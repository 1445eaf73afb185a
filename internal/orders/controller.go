package orders

import (
	"net/http"

	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries the client's idempotency key
const IdempotencyHeader = "Idempotency-Key"

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateOrder godoc
// @Summary      Create an order from a live reservation
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body CreateOrderRequest true "Reservation and customer"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Success      201 {object} response.StandardApiResponse{data=OrderResponse}
// @Success      200 {object} response.StandardApiResponse{data=OrderResponse} "Replayed"
// @Failure      409 {object} response.StandardApiResponse
// @Failure      410 {object} response.StandardApiResponse
// @Router       /orders [post]
func (c *Controller) CreateOrder(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	result, created, err := c.service.CreateOrder(ctx.Request.Context(), holder, req, ctx.GetHeader(IdempotencyHeader))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	if !created {
		response.RespondJSON(ctx, "success", http.StatusOK, "Order already exists", result, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Order created successfully", result, nil)
}

// GetOrder godoc
// @Summary      Get an order with its items and tickets
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} response.StandardApiResponse{data=OrderResponse}
// @Router       /orders/{id} [get]
func (c *Controller) GetOrder(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	result, err := c.service.GetOrder(ctx.Request.Context(), holder, ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", result, nil)
}

// ConfirmPayment godoc
// @Summary      Confirm payment and issue tickets
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body ConfirmPaymentRequest false "Payment reference"
// @Success      200 {object} response.StandardApiResponse{data=OrderResponse}
// @Failure      402 {object} response.StandardApiResponse
// @Failure      410 {object} response.StandardApiResponse
// @Router       /orders/{id}/confirm [post]
func (c *Controller) ConfirmPayment(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	var req ConfirmPaymentRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondBindError(ctx, err)
			return
		}
	}

	result, err := c.service.ConfirmPayment(ctx.Request.Context(), holder, ctx.Param("id"), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment confirmed", result, nil)
}

// CancelOrder godoc
// @Summary      Cancel a pending order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} response.StandardApiResponse{data=OrderResponse}
// @Failure      409 {object} response.StandardApiResponse
// @Router       /orders/{id}/cancel [post]
func (c *Controller) CancelOrder(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	result, err := c.service.CancelOrder(ctx.Request.Context(), holder, ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order cancelled successfully", result, nil)
}

// ScanTicket godoc
// @Summary      Admit a ticket holder
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ScanTicketRequest true "Scan code"
// @Success      200 {object} response.StandardApiResponse{data=ScanResponse}
// @Failure      409 {object} response.StandardApiResponse
// @Router       /tickets/scan [post]
func (c *Controller) ScanTicket(ctx *gin.Context) {
	var req ScanTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	actor := "user:" + ctx.GetString("user_id")

	result, err := c.service.ScanTicket(ctx.Request.Context(), req, actor)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket admitted", result, nil)
}
