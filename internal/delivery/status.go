// Package delivery holds what the HTTP and function transports share:
// error to status mapping, request and response bodies, and paging.
package delivery

import (
	"net/http"

	"github.com/adanyl0v/go-tasks/internal/models"
)

// HTTPStatus maps an error returned by the task service to a response
// status. Errors without a domain kind are internal errors.
func HTTPStatus(err error) int {
	switch models.KindOf(err) {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindAccessDenied:
		return http.StatusForbidden
	case models.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case models.ErrorKindDuplicateDescription,
		models.ErrorKindHighPriorityQuotaExceeded,
		models.ErrorKindOpenTaskQuotaExceeded,
		models.ErrorKindTaskImmutable,
		models.ErrorKindAlreadyCompleted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides the text of internal errors.
func PublicMessage(err error) string {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error: PublicMessage(err),
		Code:  models.KindOf(err).String(),
	}
}
