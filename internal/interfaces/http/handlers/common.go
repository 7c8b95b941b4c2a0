package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// writeAppError maps err to its HTTP status and the error envelope. Server
// side failures are logged and their message masked.
func writeAppError(c *gin.Context, logger logging.Logger, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		ae = errors.Wrap(err, errors.ErrCodeInternal, "internal server error")
	}
	status := errors.HTTPStatusForCode(ae.Code)

	body := lab.ErrorDetail{Code: string(ae.Code), Message: ae.Message, Detail: ae.Detail}
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			logging.String("path", c.FullPath()),
			logging.String("code", string(ae.Code)),
			logging.Err(err))
		body.Message = errors.DefaultMessageForCode(ae.Code)
		body.Detail = ""
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, lab.ErrorBody{Error: body})
}

func writeError(c *gin.Context, code errors.ErrorCode, message string) {
	c.AbortWithStatusJSON(errors.HTTPStatusForCode(code), lab.ErrorBody{Error: lab.ErrorDetail{
		Code:    string(code),
		Message: message,
	}})
}
