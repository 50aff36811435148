package errors

import (
	"errors"
	"fmt"
)

// Common pipeline errors
var (
	ErrMissingInput            = errors.New("input dataset not found")
	ErrSchemaMismatch          = errors.New("dataset schema mismatch")
	ErrQualityBelowThreshold   = errors.New("data quality below threshold")
	ErrDimensionKeyNotFound    = errors.New("dimension key not found")
	ErrRowProcessing           = errors.New("row could not be processed")
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageWriteFailed      = errors.New("storage write failed")
	ErrStorageReadFailed       = errors.New("storage read failed")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInput         ErrorType = "input"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeQualityGate   ErrorType = "quality_gate"
	ErrorTypeRow           ErrorType = "row"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInternal      ErrorType = "internal"
)

// PipelineError is an application error with category, code and an
// indication of whether the run can continue past it. Fatal errors
// (missing input, quality gate) abort the run; recoverable ones are
// absorbed into per-row counts by the caller.
type PipelineError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *PipelineError) WithDetails(details string) *PipelineError {
	e.Details = details
	return e
}

// NewPipelineError creates a new pipeline error
func NewPipelineError(errType ErrorType, code, message string) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with pipeline context
func WrapError(err error, errType ErrorType, code, message string) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewMissingInputError reports an absent input dataset. Fatal: the run
// aborts immediately.
func NewMissingInputError(path string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInput,
		Code:    CodeMissingInput,
		Message: "expected input dataset is absent",
		Details: path,
		Cause:   ErrMissingInput,
	}
}

// NewQualityGateError reports a validation score below the configured
// threshold. Fatal: Transformer and FactLoader must not run.
func NewQualityGateError(score, threshold float64) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeQualityGate,
		Code:    CodeQualityGateFailed,
		Message: fmt.Sprintf("data quality score %.2f is below threshold %.2f", score, threshold),
		Cause:   ErrQualityBelowThreshold,
	}
}

// NewRowProcessingError reports a single row that cannot be fully
// resolved. Recoverable: the row is skipped and counted.
func NewRowProcessingError(sessionID, reason string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeRow,
		Code:        CodeRowProcessingFailed,
		Message:     reason,
		Recoverable: true,
		Context:     map[string]interface{}{"session_id": sessionID},
		Cause:       ErrRowProcessing,
	}
}

// NewDimensionKeyError reports a natural key absent from a static
// dimension. Recoverable at the row level.
func NewDimensionKeyError(dimension, naturalKey string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeRow,
		Code:        CodeDimensionKeyNotFound,
		Message:     fmt.Sprintf("no %s dimension row for natural key", dimension),
		Details:     naturalKey,
		Recoverable: true,
		Cause:       ErrDimensionKeyNotFound,
	}
}

// NewSchemaError reports a dataset whose header does not match the
// expected ingestion schema. Fatal.
func NewSchemaError(details string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInput,
		Code:    CodeSchemaMismatch,
		Message: "dataset schema does not match expected columns",
		Details: details,
		Cause:   ErrSchemaMismatch,
	}
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *PipelineError {
	return NewPipelineError(ErrorTypeStorage, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *PipelineError {
	return NewPipelineError(ErrorTypeConfiguration, CodeInvalidConfiguration, message)
}

// IsRecoverable reports whether err is a per-row error the pipeline
// absorbs into counts rather than propagating.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}
	return false
}

// Error codes for different error scenarios
const (
	CodeMissingInput         = "MISSING_INPUT"
	CodeSchemaMismatch       = "SCHEMA_MISMATCH"
	CodeQualityGateFailed    = "QUALITY_GATE_FAILED"
	CodeRowProcessingFailed  = "ROW_PROCESSING_FAILED"
	CodeDimensionKeyNotFound = "DIMENSION_KEY_NOT_FOUND"
	CodeTypeCoercionFailed   = "TYPE_COERCION_FAILED"

	CodeStorageError     = "STORAGE_ERROR"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeReadFailed       = "READ_FAILED"

	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeInternalError        = "INTERNAL_ERROR"
)
