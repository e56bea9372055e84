package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrPrivilege    ErrorCode = "PRIVILEGE"

	// Configuration errors
	ErrConfigLoad      ErrorCode = "CONFIG_LOAD"
	ErrConfigParse     ErrorCode = "CONFIG_PARSE"
	ErrProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"

	// Command execution errors
	ErrCommandRun   ErrorCode = "COMMAND_RUN"
	ErrCommandExit  ErrorCode = "COMMAND_EXIT"
	ErrToolMissing  ErrorCode = "TOOL_MISSING"
	ErrQueryFailed  ErrorCode = "QUERY_FAILED"
	ErrBuildUser    ErrorCode = "BUILD_USER"
	ErrUserLookup   ErrorCode = "USER_LOOKUP"
	ErrManifestRead ErrorCode = "MANIFEST_READ"

	// Bootstrap errors
	ErrBootstrapExhausted ErrorCode = "BOOTSTRAP_EXHAUSTED"
	ErrBootstrapStrategy  ErrorCode = "BOOTSTRAP_STRATEGY"
	ErrArtifactMissing    ErrorCode = "ARTIFACT_MISSING"
	ErrArtifactInstall    ErrorCode = "ARTIFACT_INSTALL"

	// Deployment errors
	ErrDeployBackup ErrorCode = "DEPLOY_BACKUP"
	ErrDeployCopy   ErrorCode = "DEPLOY_COPY"
	ErrDeployChown  ErrorCode = "DEPLOY_CHOWN"
	ErrHomeMissing  ErrorCode = "HOME_MISSING"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileCreate   ErrorCode = "FILE_CREATE"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// DoarchError represents a structured error with code and details
type DoarchError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DoarchError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DoarchError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *DoarchError) Is(target error) bool {
	var targetErr *DoarchError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DoarchError with the given code and message
func New(code ErrorCode, message string) *DoarchError {
	return &DoarchError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DoarchError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DoarchError {
	return &DoarchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a DoarchError
func Wrap(err error, code ErrorCode, message string) *DoarchError {
	if err == nil {
		return nil
	}
	return &DoarchError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DoarchError {
	if err == nil {
		return nil
	}
	return &DoarchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *DoarchError) WithDetail(key string, value interface{}) *DoarchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var doarchErr *DoarchError
	if errors.As(err, &doarchErr) {
		return doarchErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a DoarchError
func GetErrorCode(err error) ErrorCode {
	var doarchErr *DoarchError
	if errors.As(err, &doarchErr) {
		return doarchErr.Code
	}
	return ErrUnknown
}
