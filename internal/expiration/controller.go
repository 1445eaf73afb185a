package expiration

import (
	"net/http"

	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	sweeper *Sweeper
	jobs    *JobProcessor
}

func NewController(sweeper *Sweeper, jobs *JobProcessor) *Controller {
	return &Controller{sweeper: sweeper, jobs: jobs}
}

// TriggerSweep godoc
// @Summary      Run an expiration sweep now
// @Tags         admin
// @Produce      json
// @Success      200 {object} response.StandardApiResponse{data=Stats}
// @Security     BearerAuth
// @Router       /admin/sweeps [post]
func (c *Controller) TriggerSweep(ctx *gin.Context) {
	stats, err := c.sweeper.Sweep(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep completed", stats, nil)
}

// GetStatus godoc
// @Summary      Expiration job status
// @Tags         admin
// @Produce      json
// @Success      200 {object} response.StandardApiResponse
// @Security     BearerAuth
// @Router       /admin/sweeps/status [get]
func (c *Controller) GetStatus(ctx *gin.Context) {
	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep status retrieved", c.jobs.GetJobStatus(), nil)
}
