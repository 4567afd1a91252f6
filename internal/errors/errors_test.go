package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := stderrors.New("connection reset")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"network", NewNetworkError("fetch IDS page", cause), ErrTypeNetwork, "[NETWORK] fetch IDS page: connection reset"},
		{"parsing", NewParsingError("decode FRED csv", cause), ErrTypeParsing, "[PARSING] decode FRED csv: connection reset"},
		{"storage", NewStorageError("write output", nil), ErrTypeStorage, "[STORAGE] write output"},
		{"validation", NewAppValidationError("start year after end year"), ErrTypeValidation, "[VALIDATION] start year after end year"},
		{"not found", NewNotFoundError("indicator DT.INR.DPPG"), ErrTypeNotFound, "[NOT_FOUND] indicator DT.INR.DPPG not found"},
		{"config", NewConfigError("invalid cache backend", nil), ErrTypeConfig, "[CONFIG] invalid cache backend"},
		{"upstream", NewUpstreamError("fred", 503), ErrTypeUpstream, "[UPSTREAM] fred returned status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, IsType(fmt.Errorf("wrapped: %w", tt.err), tt.wantType))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("step failed: %w", NewStorageError("write", cause))

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsType(err, ErrTypeNetwork))
	assert.False(t, IsType(cause, ErrTypeStorage))
}

func TestUpstreamErrorContext(t *testing.T) {
	err := NewUpstreamError("imf", 404)
	assert.Equal(t, 404, err.Context["status"])
	assert.Equal(t, "imf", err.Context["source"])
}

func TestFromValidation(t *testing.T) {
	type options struct {
		StartYear int `validate:"min=1970"`
		EndYear   int `validate:"gtefield=StartYear"`
	}

	v := validator.New()
	err := FromValidation(v.Struct(options{StartYear: 1960, EndYear: 1950}))
	require.Error(t, err)

	assert.True(t, IsType(err, ErrTypeValidation))
	assert.Contains(t, err.Error(), "StartYear failed min=1970")
	assert.Contains(t, err.Error(), "EndYear failed gtefield=StartYear")

	assert.NoError(t, FromValidation(nil))
	plain := stderrors.New("plain")
	assert.Equal(t, plain, FromValidation(plain))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", NewAppValidationError("bad"), http.StatusBadRequest},
		{"not found", NewNotFoundError("run"), http.StatusNotFound},
		{"network", NewNetworkError("down", nil), http.StatusBadGateway},
		{"upstream", NewUpstreamError("wb", 500), http.StatusBadGateway},
		{"storage", NewStorageError("disk", nil), http.StatusInternalServerError},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
		{"api error", ErrConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, FromError(tt.err).StatusCode)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)

	WriteError(rec, req, NewNotFoundError("run"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error_code":"NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
