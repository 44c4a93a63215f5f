package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Input errors (1xxx)
	ErrCodeMissingInput    ErrorCode = "DMS1001"
	ErrCodeInvalidLocation ErrorCode = "DMS1002"
	ErrCodeNoResults       ErrorCode = "DMS1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "DMS2001"
	ErrCodeConfigInvalid  ErrorCode = "DMS2002"

	// Engine errors (3xxx)
	ErrCodeEngineUnavailable ErrorCode = "DMS3001"
	ErrCodeNotConnected      ErrorCode = "DMS3002"

	// Query execution errors (4xxx)
	ErrCodeSQLExecution ErrorCode = "DMS4001"
	ErrCodeSQLTimeout   ErrorCode = "DMS4002"
	ErrCodeResultScan   ErrorCode = "DMS4003"

	// File system errors (5xxx)
	ErrCodeFileOperation  ErrorCode = "DMS5001"
	ErrCodeFilePermission ErrorCode = "DMS5002"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "DMS6001"
	ErrCodeInvalidInput     ErrorCode = "DMS6002"

	// Storage errors (7xxx)
	ErrCodeUploadFailed ErrorCode = "DMS7001"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "DMS9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Build aborted, store may be partial
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed before mutating anything
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so callers can compare against sentinel AppErrors
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// MissingInputError reports every required dataset that matched no files.
// The map is keyed by input name (facts, rules, geo) and holds the pattern tried.
func MissingInputError(missing map[string]string) *AppError {
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, missing[name]))
	}

	err := New(ErrCodeMissingInput, "No matching files for required inputs: "+strings.Join(parts, ", ")).
		WithContext("missing", names).
		WithSuggestions(
			"Check the configured input paths",
			"Directories are searched recursively for the expected extension",
		)
	for _, name := range names {
		err.WithContext(name, missing[name])
	}
	return err
}

// EngineError reports that the columnar engine could not be opened
func EngineError(message string, cause error) *AppError {
	return wrapOrNew(cause, ErrCodeEngineUnavailable, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Ensure the binary was built with cgo enabled (DuckDB driver)",
			"Check the engine.database path is writable",
		)
}

// FileSystemError creates a filesystem error for path
func FileSystemError(message, path string, cause error) *AppError {
	code := ErrCodeFileOperation
	if cause != nil && strings.Contains(strings.ToLower(cause.Error()), "permission denied") {
		code = ErrCodeFilePermission
	}
	return wrapOrNew(cause, code, message).WithContext("path", path)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'dmastore init' to regenerate the configuration",
		)
}

// SQLError creates a query execution error keeping the engine diagnostic as cause
func SQLError(message string, query string, cause error) *AppError {
	err := wrapOrNew(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if cause != nil {
		lower := strings.ToLower(cause.Error())
		switch {
		case strings.Contains(lower, "context deadline exceeded") || strings.Contains(lower, "timeout"):
			err.Code = ErrCodeSQLTimeout
			_ = err.WithSuggestions("Increase engine.timeout")
		case strings.Contains(lower, "no space left"):
			err.Severity = SeverityCritical
			_ = err.WithSuggestions("Free disk space on the output volume; partitions already flushed are left in place")
		case strings.Contains(lower, "conversion error") || strings.Contains(lower, "could not convert"):
			_ = err.WithSuggestions("Check source column types against the configured schema")
		}
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}

func wrapOrNew(cause error, code ErrorCode, message string) *AppError {
	if cause == nil {
		return New(code, message)
	}
	return Wrap(cause, code, message)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
