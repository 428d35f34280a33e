package response

import (
	"errors"

	"festival/internal/shared/apperror"
	"festival/pkg/logger"

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

// RespondError maps typed service errors to their status code and structured
// details. Untyped errors are logged and hidden behind a generic 500.
func RespondError(c *gin.Context, err error) {
	var typed apperror.Typed
	if errors.As(err, &typed) {
		code := apperror.HTTPStatus(typed.Kind())
		RespondJSON(c, "error", code, typed.Error(), nil, ErrorBody{
			Kind:    string(typed.Kind()),
			Details: typed.Details(),
		})
		return
	}

	code := apperror.HTTPStatus(apperror.KindInternal)
	logger.GetDefault().LogHTTPError(c, err, code)
	RespondJSON(c, "error", code, "Internal server error", nil, ErrorBody{
		Kind: string(apperror.KindInternal),
	})
}
