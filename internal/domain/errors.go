package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies a publish failure. Retryability is a property of the
// code, not of the call site.
type ErrorCode string

const (
	CodeAuth               ErrorCode = "auth_error"
	CodeRateLimit          ErrorCode = "rate_limit_error"
	CodeValidation         ErrorCode = "validation_error"
	CodeNotFound           ErrorCode = "not_found"
	CodeNetwork            ErrorCode = "network_error"
	CodeUnsupportedOp      ErrorCode = "unsupported_operation"
	CodeUnsupportedContent ErrorCode = "unsupported_content"
	CodeInternal           ErrorCode = "internal_error"
	CodeSkipped            ErrorCode = "skipped"
)

// PublishError is the structured error carried by every failed adapter call.
type PublishError struct {
	Code       ErrorCode
	Platform   string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *PublishError) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s: %s", e.Platform, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the queue's retry policy should consider
// re-running an item that failed with this error.
func (e *PublishError) Retryable() bool {
	return e.Code == CodeRateLimit || e.Code == CodeNetwork
}

// NewPublishError builds a PublishError for one platform.
func NewPublishError(code ErrorCode, platform, message string) *PublishError {
	return &PublishError{Code: code, Platform: platform, Message: message}
}

// AsPublishError unwraps err to a PublishError, or wraps it as an internal
// error so callers always get a coded failure.
func AsPublishError(err error, platform string) *PublishError {
	if err == nil {
		return nil
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe
	}
	return &PublishError{Code: CodeInternal, Platform: platform, Message: err.Error(), Err: err}
}
