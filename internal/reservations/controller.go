package reservations

import (
	"net/http"

	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// Reserve godoc
// @Summary      Reserve seats of a show
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        request body ReserveRequest true "Seats to reserve"
// @Param        X-Session-ID header string false "Guest session"
// @Success      201 {object} response.StandardApiResponse{data=ReservationResponse}
// @Failure      409 {object} response.StandardApiResponse
// @Router       /reservations [post]
func (c *Controller) Reserve(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	var req ReserveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	result, err := c.service.Reserve(ctx.Request.Context(), holder, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats reserved successfully", result, nil)
}

// ReserveCart godoc
// @Summary      Reserve seats across several shows, all or none
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        request body CartRequest true "Cart"
// @Success      201 {object} response.StandardApiResponse{data=CartResponse}
// @Failure      409 {object} response.StandardApiResponse
// @Router       /reservations/cart [post]
func (c *Controller) ReserveCart(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	var req CartRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	result, err := c.service.ReserveCart(ctx.Request.Context(), holder, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Cart reserved successfully", result, nil)
}

// GetStatus godoc
// @Summary      Reservation status
// @Tags         reservations
// @Produce      json
// @Param        token path string true "Reservation token"
// @Success      200 {object} response.StandardApiResponse{data=StatusResponse}
// @Router       /reservations/{token} [get]
func (c *Controller) GetStatus(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	result, err := c.service.Status(ctx.Request.Context(), holder, ctx.Param("token"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved successfully", result, nil)
}

// Extend godoc
// @Summary      Extend a reservation deadline
// @Tags         reservations
// @Produce      json
// @Param        token path string true "Reservation token"
// @Success      200 {object} response.StandardApiResponse{data=ExtendResponse}
// @Failure      400 {object} response.StandardApiResponse
// @Failure      410 {object} response.StandardApiResponse
// @Router       /reservations/{token}/extend [post]
func (c *Controller) Extend(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	result, err := c.service.Extend(ctx.Request.Context(), holder, ctx.Param("token"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation extended successfully", result, nil)
}

// Release godoc
// @Summary      Release a reservation
// @Tags         reservations
// @Produce      json
// @Param        token path string true "Reservation token"
// @Success      200 {object} response.StandardApiResponse{data=ReleaseResponse}
// @Router       /reservations/{token} [delete]
func (c *Controller) Release(ctx *gin.Context) {
	holder, _ := middleware.HolderFromContext(ctx)

	result, err := c.service.Release(ctx.Request.Context(), holder, ctx.Param("token"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation released successfully", result, nil)
}
