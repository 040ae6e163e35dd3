package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-tasks/internal/delivery"
	"github.com/adanyl0v/go-tasks/internal/models"
)

var (
	errMissingIdentity   = errors.New("user identity is required")
	errInvalidAuthHeader = errors.New("invalid authorization header")
)

type apiError struct {
	Status  int
	Code    string
	Message string
}

func newAPIError(status int, code, message string) apiError {
	return apiError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Status, delivery.ErrorResponse{Error: err.Message, Code: err.Code})
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, "unauthorized", message)
}

// newServiceError translates an error returned by the task service.
func newServiceError(err error) apiError {
	return newAPIError(
		delivery.HTTPStatus(err),
		models.KindOf(err).String(),
		delivery.PublicMessage(err),
	)
}

// fail logs err and aborts the request with its mapped status.
func (h *handlerImpl) fail(c *gin.Context, err error, msg string) {
	apiErr := newServiceError(err)
	event := h.logger.Warn()
	if apiErr.Status == http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", apiErr.Status).
		Msg(msg)
	abort(c, apiErr)
}
