package errors

import "fmt"

// ErrorType categorizes an error so callers can map it onto an exit code or
// HTTP status without inspecting messages.
type ErrorType int

const (
	// ErrorTypeConfig - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeValidation - invalid caller input (filters, ids, rule ranges)
	ErrorTypeValidation
	// ErrorTypeDatabase - store connection or query failure
	ErrorTypeDatabase
	// ErrorTypeSchema - an expected table/relation is absent
	ErrorTypeSchema
	// ErrorTypeAuthorization - caller acting outside its visibility scope
	ErrorTypeAuthorization
	// ErrorTypeNotFound - requested record does not exist
	ErrorTypeNotFound
	// ErrorTypeInternal - unexpected internal state
	ErrorTypeInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeDatabase:
		return "DATABASE"
	case ErrorTypeSchema:
		return "SCHEMA"
	case ErrorTypeAuthorization:
		return "AUTHORIZATION"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// Severity indicates whether an error degrades a response or fails it
type Severity int

const (
	// SeverityLow - continue with degraded output
	SeverityLow Severity = iota
	// SeverityMedium - the request fails but the process is healthy
	SeverityMedium
	// SeverityHigh - the request fails and the condition wants attention
	SeverityHigh
	// SeverityCritical - the process should stop
	SeverityCritical
)

// Error is the structured error the service layers raise
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so errors.Is(err, &Error{Type: ...}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates an error with the given type and severity
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap attaches a type and severity to an underlying error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// DatabaseError wraps a database error
func DatabaseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, message)
}

// AuthorizationError creates an authorization error
func AuthorizationError(message string) *Error {
	return New(ErrorTypeAuthorization, SeverityHigh, message)
}

// NotFoundErrorf creates a not-found error with formatting
func NotFoundErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeNotFound, SeverityMedium, fmt.Sprintf(format, args...))
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// GetType returns the type of an error, ErrorTypeInternal for foreign errors
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// GetSeverity returns the severity of an error, SeverityMedium for foreign
// errors so they fail the request without killing the process
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	if e, ok := err.(*Error); ok {
		return e.Severity
	}
	return SeverityMedium
}
