package shared

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GenericProcessingMessage is the only failure text callers ever see for
// normalization or transcription problems.
const GenericProcessingMessage = "Could not process the audio. Please try again."

type APIError struct {
	Code    string `json:"code" example:"processing_failed"`
	Message string `json:"message" example:"Could not process the audio. Please try again."`
	Details any    `json:"details,omitempty"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func PayloadTooLarge(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusRequestEntityTooLarge)
}

func TooManyRequests(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusTooManyRequests)
}

func BadGateway(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadGateway)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}

// ProcessingFailed hides transport and conversion internals from the caller.
func ProcessingFailed() *echo.HTTPError {
	return BadGateway("processing_failed", GenericProcessingMessage)
}
