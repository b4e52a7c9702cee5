// Package apperr provides the stable, transport-agnostic error codes and the
// single structured error type used across the translation pipeline.
//
// Design Pattern: Factory Pattern for error creation.
package apperr

import (
	"fmt"
	"time"
)

// Code is one of the stable string codes the pipeline can raise; these are
// safe to surface across process or transport boundaries.
type Code string

const (
	CodeFormatUnsupported     Code = "FORMAT_UNSUPPORTED"
	CodeEncrypted             Code = "ENCRYPTED"
	CodeCorrupted             Code = "CORRUPTED"
	CodeFileNotFound          Code = "FILE_NOT_FOUND"
	CodeAuthenticationFailed  Code = "AUTHENTICATION_FAILED"
	CodeAuthenticationRequired Code = "AUTHENTICATION_REQUIRED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeServiceUnavailable    Code = "SERVICE_UNAVAILABLE"
	CodeProcessingTimeout     Code = "PROCESSING_TIMEOUT"
	CodeProtocolError         Code = "PROTOCOL_ERROR"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeCancelled             Code = "CANCELLED"
	CodeInternal              Code = "INTERNAL"
)

// PipelineError is the one structured error type raised by every component
// in the pipeline.
type PipelineError struct {
	Code      Code
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
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

// Retryable reports whether the error class is one the spec marks retryable
// (transient network conditions, rate limiting, upstream unavailability).
func (e *PipelineError) Retryable() bool {
	switch e.Code {
	case CodeProcessingTimeout, CodeRateLimited, CodeServiceUnavailable:
		return true
	default:
		return false
	}
}

// ToMap converts the error into a flat map suitable for persisting alongside
// a job record.
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	for k, v := range e.Details {
		result[k] = v
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	return result
}

func New(code Code, jobID, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func WithDetails(code Code, jobID, message string, cause error, details map[string]interface{}) *PipelineError {
	e := New(code, jobID, message, cause)
	e.Details = details
	return e
}

// Factory functions for the codes exercised most often by the pipeline.

func NewFormatUnsupported(jobID, ext string) *PipelineError {
	return WithDetails(CodeFormatUnsupported, jobID, fmt.Sprintf("unsupported file format: %s", ext), nil,
		map[string]interface{}{"extension": ext})
}

func NewEncrypted(jobID string) *PipelineError {
	return New(CodeEncrypted, jobID, "document is encrypted", nil)
}

func NewCorrupted(jobID, reason string) *PipelineError {
	return WithDetails(CodeCorrupted, jobID, fmt.Sprintf("document is corrupted: %s", reason), nil,
		map[string]interface{}{"reason": reason})
}

func NewFileNotFound(jobID, path string) *PipelineError {
	return WithDetails(CodeFileNotFound, jobID, fmt.Sprintf("file not found: %s", path), nil,
		map[string]interface{}{"path": path})
}

func NewProcessingTimeout(jobID string, timeout time.Duration, cause error) *PipelineError {
	return WithDetails(CodeProcessingTimeout, jobID,
		fmt.Sprintf("processing timed out after %v", timeout), cause,
		map[string]interface{}{"timeout": timeout.String()})
}

func NewRateLimited(jobID string, retryAfter time.Duration) *PipelineError {
	return WithDetails(CodeRateLimited, jobID, "rate limited by upstream service", nil,
		map[string]interface{}{"retry_after": retryAfter.String()})
}

func NewServiceUnavailable(jobID string, statusCode int, cause error) *PipelineError {
	return WithDetails(CodeServiceUnavailable, jobID,
		fmt.Sprintf("upstream service unavailable (status %d)", statusCode), cause,
		map[string]interface{}{"status_code": statusCode})
}

func NewAuthenticationFailed(jobID string) *PipelineError {
	return New(CodeAuthenticationFailed, jobID, "authentication rejected by upstream service", nil)
}

func NewAuthenticationRequired(jobID string) *PipelineError {
	return New(CodeAuthenticationRequired, jobID, "authentication token is required", nil)
}

func NewProtocolError(jobID string, cause error) *PipelineError {
	return New(CodeProtocolError, jobID, "malformed response from upstream service", cause)
}

func NewInvalidInput(jobID, reason string) *PipelineError {
	return WithDetails(CodeInvalidInput, jobID, reason, nil, map[string]interface{}{"reason": reason})
}

func NewNotFound(jobID, what string) *PipelineError {
	return WithDetails(CodeNotFound, jobID, fmt.Sprintf("%s not found", what), nil,
		map[string]interface{}{"what": what})
}

func NewCancelled(jobID string) *PipelineError {
	return New(CodeCancelled, jobID, "job was cancelled", nil)
}

func NewInternal(jobID string, cause error) *PipelineError {
	return New(CodeInternal, jobID, "internal error", cause)
}
