package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Error types for the stream OCR worker
 *
 * Every failure in the pipeline degrades to "no output this cycle"; these types
 * only carry enough structure to log the failure usefully.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Lifecycle errors
	ErrorBackendInit ErrorCode = "BACKEND_INIT_FAILED"

	// Per-iteration errors
	ErrorPreprocessFailed ErrorCode = "PREPROCESS_FAILED"
	ErrorOCRFailed        ErrorCode = "OCR_FAILED"
	ErrorRenderFailed     ErrorCode = "RENDER_FAILED"
	ErrorIterationPanic   ErrorCode = "ITERATION_PANIC"

	// Config storage errors
	ErrorArtifactFailed ErrorCode = "ARTIFACT_FAILED"
)

// PipelineError represents a structured pipeline error
type PipelineError struct {
	Code       ErrorCode
	Message    string
	InstanceID string
	Timestamp  time.Time
	Details    map[string]interface{}
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewBackendInitError(instanceID, modelPath, language string, cause error) *PipelineError {
	return &PipelineError{
		Code:       ErrorBackendInit,
		Message:    "Failed to load recognition backend",
		InstanceID: instanceID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"model_path": modelPath,
			"language":   language,
		},
		Cause: cause,
	}
}

func NewPreprocessError(stage string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorPreprocessFailed,
		Message:   fmt.Sprintf("Preprocessing failed at stage: %s", stage),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(step string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed at step: %s", step),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_step": step,
		},
		Cause: cause,
	}
}

func NewRenderFailedError(mode string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorRenderFailed,
		Message:   fmt.Sprintf("Failed to render detection output (mode: %s)", mode),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_mode": mode,
		},
		Cause: cause,
	}
}

func NewIterationPanicError(recovered interface{}) *PipelineError {
	return &PipelineError{
		Code:      ErrorIterationPanic,
		Message:   fmt.Sprintf("Iteration panicked: %v", recovered),
		Timestamp: time.Now(),
	}
}

func NewArtifactFailedError(instanceID, path string, cause error) *PipelineError {
	return &PipelineError{
		Code:       ErrorArtifactFailed,
		Message:    "Failed to write artifact to config storage",
		InstanceID: instanceID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

// ToMap converts error to map for structured logging
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.InstanceID != "" {
		result["instance_id"] = e.InstanceID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// KeyValues flattens ToMap into logger key-value pairs
func (e *PipelineError) KeyValues() []interface{} {
	m := e.ToMap()
	kv := make([]interface{}, 0, len(m)*2)
	for k, v := range m {
		kv = append(kv, k, v)
	}
	return kv
}

// As returns the first PipelineError in err's chain
func As(err error) (*PipelineError, bool) {
	var perr *PipelineError
	if stderrors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool {
	perr, ok := As(err)
	return ok && perr.Code == code
}
