package api

import (
	"errors"
	"net/http"

	"snapfolio/pkg/snapfolio"
)

// Response represents a successful API response with unified format.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse represents an error API response with structured information.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// writeSuccess writes a successful response with data.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{
		Code: 0,
		Data: data,
	})
}

// writeSuccessWithMessage writes a successful response with data and message.
func writeSuccessWithMessage(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// writeErrorResponse writes an error response with proper HTTP status.
// The full error chain goes to the request log via the error message hook;
// 5xx bodies carry only the structured message so wrapped driver and
// collaborator errors never reach clients.
func writeErrorResponse(w http.ResponseWriter, httpStatus int, err error) {
	var sfErr *snapfolio.Error
	if errors.As(err, &sfErr) {
		httpStatus = mapErrorCodeToHTTPStatus(sfErr.Code)
	}

	response := ErrorResponse{
		Code:    httpStatus,
		Message: err.Error(),
	}
	if sfErr != nil {
		response.ErrorCode = string(sfErr.Code)
	}
	if httpStatus >= http.StatusInternalServerError {
		if sfErr != nil {
			response.Message = sfErr.Message
		} else {
			response.Message = "internal server error"
		}
	}

	if setter, ok := w.(errorMessageSetter); ok {
		setter.SetErrorMessage(err.Error())
	}
	writeJSON(w, httpStatus, response)
}

// mapErrorCodeToHTTPStatus maps business error codes to HTTP status codes.
func mapErrorCodeToHTTPStatus(code snapfolio.ErrorCode) int {
	switch code {
	case snapfolio.ErrCodeValidation:
		return http.StatusBadRequest
	case snapfolio.ErrCodeNotFound:
		return http.StatusNotFound
	case snapfolio.ErrCodeExpired:
		return http.StatusGone
	case snapfolio.ErrCodeConflict:
		return http.StatusConflict
	case snapfolio.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case snapfolio.ErrCodeFatal, snapfolio.ErrCodeDatabase, snapfolio.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
