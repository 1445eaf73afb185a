package response

import (
	"errors"
	"log/slog"
	"net/http"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/utils/validation"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps err onto the error envelope. Unknown errors become a generic 500.
func RespondError(c *gin.Context, err error) {
	var known apperrors.HTTPError
	if !errors.As(err, &known) {
		logger.GetDefault().LogHTTPError(c, err, http.StatusInternalServerError)
		RespondJSON(c, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
		return
	}

	code := known.StatusCode()
	if code >= http.StatusInternalServerError {
		logger.GetDefault().LogHTTPError(c, err, code)
		RespondJSON(c, "error", code, "Temporary failure, please retry", nil, ErrorBody{Code: known.Code()})
		return
	}

	logger.GetDefault().DebugContext(c.Request.Context(), "request rejected",
		slog.String("path", c.FullPath()),
		slog.String("code", known.Code()),
		slog.String("error", err.Error()),
	)
	RespondJSON(c, "error", code, known.Error(), nil, ErrorBody{Code: known.Code(), Details: known.Details()})
}

// RespondBindError reports a request body that failed binding or validation.
func RespondBindError(c *gin.Context, err error) {
	RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, ErrorBody{
		Code:    "validation_failed",
		Details: validation.Describe(err),
	})
}
