package inventory

import (
	"net/http"

	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetSeatMap godoc
// @Summary      Seat map of a show
// @Tags         shows
// @Produce      json
// @Param        showId path string true "Show ID"
// @Success      200 {object} response.StandardApiResponse{data=SeatMapResponse}
// @Router       /shows/{showId}/seats [get]
func (c *Controller) GetSeatMap(ctx *gin.Context) {
	seatMap, err := c.service.GetSeatMap(ctx.Request.Context(), ctx.Param("showId"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved successfully", seatMap, nil)
}

// HoldSeats godoc
// @Summary      Take seats out of sale
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        showId path string true "Show ID"
// @Param        request body SeatHoldRequest true "Seats"
// @Success      200 {object} response.StandardApiResponse{data=HoldResponse}
// @Security     BearerAuth
// @Router       /admin/shows/{showId}/holds [post]
func (c *Controller) HoldSeats(ctx *gin.Context) {
	var req SeatHoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	result, err := c.service.HoldSeats(ctx.Request.Context(), ctx.Param("showId"), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats held successfully", result, nil)
}

// ReleaseHeldSeats godoc
// @Summary      Put held seats back on sale
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        showId path string true "Show ID"
// @Param        request body SeatHoldRequest true "Seats"
// @Success      200 {object} response.StandardApiResponse{data=HoldResponse}
// @Security     BearerAuth
// @Router       /admin/shows/{showId}/holds [delete]
func (c *Controller) ReleaseHeldSeats(ctx *gin.Context) {
	var req SeatHoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(ctx, err)
		return
	}

	result, err := c.service.ReleaseHeldSeats(ctx.Request.Context(), ctx.Param("showId"), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats released successfully", result, nil)
}
