package shared

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("test_code", "test message")
	if err.Code != "test_code" {
		t.Errorf("expected code 'test_code', got '%s'", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("expected message 'test message', got '%s'", err.Message)
	}
	if err.Details != nil {
		t.Errorf("expected nil details, got %v", err.Details)
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	err := NewAPIError("code", "message").WithDetails(map[string]string{"field": "value"})

	d, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatal("expected details to be map[string]string")
	}
	if d["field"] != "value" {
		t.Errorf("expected field 'value', got '%s'", d["field"])
	}
}

func TestBadRequest(t *testing.T) {
	assertHTTPError(t, BadRequest("bad", "bad request"), http.StatusBadRequest, "bad", "bad request")
}

func TestPayloadTooLarge(t *testing.T) {
	assertHTTPError(t, PayloadTooLarge("big", "too big"), http.StatusRequestEntityTooLarge, "big", "too big")
}

func TestTooManyRequests(t *testing.T) {
	assertHTTPError(t, TooManyRequests("slow_down", "rate limited"), http.StatusTooManyRequests, "slow_down", "rate limited")
}

func TestInternalError(t *testing.T) {
	assertHTTPError(t, InternalError("internal", "internal error"), http.StatusInternalServerError, "internal", "internal error")
}

func TestProcessingFailed(t *testing.T) {
	assertHTTPError(t, ProcessingFailed(), http.StatusBadGateway, "processing_failed", GenericProcessingMessage)
}

func assertHTTPError(t *testing.T, err *echo.HTTPError, expectedStatus int, expectedCode, expectedMessage string) {
	t.Helper()
	if err.Code != expectedStatus {
		t.Errorf("expected status %d, got %d", expectedStatus, err.Code)
	}
	apiErr, ok := err.Message.(*APIError)
	if !ok {
		t.Fatal("expected message to be *APIError")
	}
	if apiErr.Code != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, apiErr.Code)
	}
	if apiErr.Message != expectedMessage {
		t.Errorf("expected message '%s', got '%s'", expectedMessage, apiErr.Message)
	}
}
