package payments

import (
	"errors"
	"io"
	"net/http"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds what is read before the signature is checked
const maxWebhookBody = 64 << 10

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateIntent godoc
// @Summary      Create or reuse the payment intent of an order
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        request body CreateIntentRequest false "Idempotency key in the body"
// @Success      200 {object} response.StandardApiResponse{data=IntentResponse}
// @Failure      409 {object} response.StandardApiResponse
// @Failure      503 {object} response.StandardApiResponse
// @Router       /orders/{id}/payment-intent [post]
func (c *Controller) CreateIntent(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	key := ctx.GetHeader(IdempotencyHeader)
	if ctx.Request.ContentLength > 0 {
		var req CreateIntentRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondBindError(ctx, err)
			return
		}
		if key == "" {
			key = req.IdempotencyKey
		}
	}

	result, err := c.service.CreateIntent(ctx.Request.Context(), holder, ctx.Param("id"), key)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment intent ready", result, nil)
}

// Webhook godoc
// @Summary      Receive charge authority events
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Payment-Signature header string true "t=<unix>,v1=<hex hmac>"
// @Success      200 {object} response.StandardApiResponse{data=WebhookResult}
// @Failure      400 {object} response.StandardApiResponse
// @Router       /payments/webhook [post]
func (c *Controller) Webhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		response.RespondError(ctx, apperrors.Validation("body", "webhook body is unreadable or too large"))
		return
	}

	result, err := c.service.HandleWebhook(ctx.Request.Context(), body, ctx.GetHeader(SignatureHeader))
	if err != nil {
		var invalid *apperrors.ValidationError
		if errors.As(err, &invalid) {
			logger.GetDefault().LogWebhookRejected(ctx.Request.Context(), invalid.Message, ctx.ClientIP())
		}
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Webhook processed", result, nil)
}
