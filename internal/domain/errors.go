package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors shared across the pipeline.
var (
	ErrInitialization        = errors.New("pipeline initialization failed")
	ErrEmptyReference        = errors.New("reference dataset is empty")
	ErrInvalidThreshold      = errors.New("threshold must be in (0, 1]")
	ErrClassifierUnavailable = errors.New("severity classifier unavailable")
	ErrInvalidPrediction     = errors.New("severity classifier returned an invalid prediction")
)

// Error codes returned in ServiceError.Code.
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrAnalysis       = "ANALYSIS_ERROR"
	ErrReference      = "REFERENCE_ERROR"
	ErrExternalModel  = "EXTERNAL_MODEL_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
)

// ServiceError is the JSON error body of the HTTP API.
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewServiceError stamps a ServiceError with the current UTC time.
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError reports one rejected request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Classify maps a pipeline error onto an API error code and HTTP status.
// Unrecognized errors are analysis failures.
func Classify(err error) (code string, status int) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return ErrValidation, http.StatusBadRequest
	case errors.Is(err, ErrEmptyReference), errors.Is(err, ErrInitialization):
		return ErrReference, http.StatusServiceUnavailable
	case errors.Is(err, ErrClassifierUnavailable), errors.Is(err, ErrInvalidPrediction):
		return ErrExternalModel, http.StatusBadGateway
	default:
		return ErrAnalysis, http.StatusInternalServerError
	}
}
