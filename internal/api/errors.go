package api

import (
	"net/http"

	"bookclub/internal/services"
	"bookclub/internal/validation"
)

var kindStatus = map[string]int{
	services.KindNotFound:          http.StatusNotFound,
	services.KindAlreadyQueued:     http.StatusConflict,
	services.KindAlreadyMember:     http.StatusConflict,
	services.KindAlreadyExists:     http.StatusConflict,
	services.KindGroupFull:         http.StatusConflict,
	services.KindInvalidTransition: http.StatusConflict,
	services.KindNotMember:         http.StatusForbidden,
	services.KindEmptyMessage:      http.StatusBadRequest,
	services.KindValidation:        http.StatusBadRequest,
}

// StatusForError maps an error kind to its HTTP status. Untagged errors are 500.
func StatusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := kindStatus[services.Kind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// BadRequest tags a malformed request body or parameter.
func BadRequest(message string) error {
	return services.Wrap(services.ErrValidation, "api", "request", message, nil)
}

// NewErrorResponse builds the envelope for err. Internal errors get a
// generic message so storage details are not leaked to clients.
func NewErrorResponse(err error) ErrorResponse {
	kind := services.Kind(err)
	body := ErrorBody{Kind: kind, Message: err.Error()}
	if kind == services.KindInternal {
		body.Message = "internal server error"
	}
	if fields := validation.Details(err); len(fields) > 0 {
		body.Fields = fields
	}
	return ErrorResponse{Success: false, Error: body}
}
