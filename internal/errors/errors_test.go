package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantCode int
	}{
		{"validation", NewValidationError("bad", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("down", nil), ErrorTypeNetwork, http.StatusBadGateway},
		{"timeout", NewTimeoutError("slow", nil), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"unauthorized", NewUnauthorizedError("who", nil), ErrorTypeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no", nil), ErrorTypeForbidden, http.StatusForbidden},
		{"http", NewHTTPError(503, "unavailable"), ErrorTypeHTTP, 503},
		{"business", NewBusinessError(40001, "invalid document"), ErrorTypeBusiness, http.StatusUnprocessableEntity},
		{"quota", NewQuotaExceededError("quota"), ErrorTypeQuota, http.StatusPaymentRequired},
		{"not found", NewNotFoundError("missing", nil), ErrorTypeNotFound, http.StatusNotFound},
		{"internal", NewInternalError("boom", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.StatusCode)
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestAppError_WrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := NewNetworkError("backend unreachable", cause).WithTraceID("req-1")

	wrapped := fmt.Errorf("analyze: %w", err)

	assert.True(t, IsType(wrapped, ErrorTypeNetwork))
	assert.Equal(t, http.StatusBadGateway, GetStatusCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, err.Error(), "caused by")
	assert.Equal(t, "req-1", err.TraceID)
}

func TestGetStatusCode_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(fmt.Errorf("plain")))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeValidation))
}

func TestBusinessError_Details(t *testing.T) {
	err := NewBusinessError(40001, "document not recognized")
	assert.Equal(t, "business code 40001", err.Details)
	assert.Equal(t, "business: document not recognized", err.Error())
}
