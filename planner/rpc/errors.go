package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
)

// HttpError is an error answered with the standard failure envelope
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

// HTTP Error constructors

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       models.CodeValidationError,
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorMethodNotAllowed(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       "METHOD_NOT_ALLOWED",
		Message:    messageOrDefault(msg, "Method not allowed"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       models.CodeExecutionError,
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

// writeHttpError answers with success=false, data=null and the error code
func writeHttpError(w http.ResponseWriter, e *HttpError) {
	msg := e.Message
	body, err := json.Marshal(models.APIResponse{
		Success: false,
		Error:   &msg,
		Code:    e.Code,
	})
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, e.StatusCode, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
