package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of service errors
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork represents transport-level failures
	ErrorTypeNetwork
	// ErrorTypeBadRequest represents rejected statements or malformed requests
	ErrorTypeBadRequest
	// ErrorTypeNotFound represents unknown resources or transactions
	ErrorTypeNotFound
	// ErrorTypeForbidden represents authentication and authorization failures
	ErrorTypeForbidden
	// ErrorTypeInternal represents failures inside the service
	ErrorTypeInternal
)

// Error codes as they appear on the wire.
const (
	CodeBadRequest       = "BadRequestException"
	CodeNotFound         = "NotFoundException"
	CodeForbidden        = "ForbiddenException"
	CodeInternal         = "InternalServerErrorException"
	CodeStatementTimeout = "StatementTimeoutException"
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeBadRequest:
		return "bad request"
	case ErrorTypeNotFound:
		return "not found"
	case ErrorTypeForbidden:
		return "forbidden"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code returns the wire error code for the type.
func (t ErrorType) Code() string {
	switch t {
	case ErrorTypeBadRequest:
		return CodeBadRequest
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeForbidden:
		return CodeForbidden
	default:
		return CodeInternal
	}
}

// StatusCode returns the HTTP status used to report the type.
func (t ErrorType) StatusCode() int {
	switch t {
	case ErrorTypeBadRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// TypeFromCode maps a wire error code onto an ErrorType.
func TypeFromCode(code string) ErrorType {
	// Codes sometimes arrive as "BadRequestException:http://..." style values.
	code, _, _ = strings.Cut(code, ":")
	switch code {
	case CodeBadRequest, CodeStatementTimeout:
		return ErrorTypeBadRequest
	case CodeNotFound:
		return ErrorTypeNotFound
	case CodeForbidden:
		return ErrorTypeForbidden
	case CodeInternal, "ServiceUnavailableError":
		return ErrorTypeInternal
	default:
		return ErrorTypeUnknown
	}
}

// Error represents a structured error with type information
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewError creates a new Error with the specified type and message
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:       errorType,
		Message:    message,
		StatusCode: errorType.StatusCode(),
	}
}

// NewErrorWithCause creates a new Error with the specified type, message, and underlying cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:       errorType,
		Message:    message,
		StatusCode: errorType.StatusCode(),
		Cause:      cause,
	}
}

// NewNetworkError creates a transport-related error
func NewNetworkError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeNetwork,
		Message: message,
		Cause:   cause,
	}
}

// NewBadRequestError creates an error for a rejected request
func NewBadRequestError(message string) *Error {
	return NewError(ErrorTypeBadRequest, message)
}

// NewNotFoundError creates an error for an unknown resource or transaction
func NewNotFoundError(message string) *Error {
	return NewError(ErrorTypeNotFound, message)
}

// NewForbiddenError creates an authentication or authorization error
func NewForbiddenError(message string) *Error {
	return NewError(ErrorTypeForbidden, message)
}

func isType(err error, errorType ErrorType) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.IsType(errorType)
	}
	return false
}

// IsNetworkError checks if an error is transport-related
func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

// IsBadRequestError checks if the service rejected the request
func IsBadRequestError(err error) bool {
	return isType(err, ErrorTypeBadRequest)
}

// IsNotFoundError checks if the service did not find the resource or transaction
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsForbiddenError checks if the request was not authorized
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// WrapHTTPError wraps an HTTP error response into an appropriate Error type.
// The code comes from the x-amzn-ErrorType header when present, otherwise
// from the status.
func WrapHTTPError(statusCode int, code, message string) *Error {
	errorType := TypeFromCode(code)
	if errorType == ErrorTypeUnknown {
		switch statusCode {
		case http.StatusBadRequest:
			errorType = ErrorTypeBadRequest
		case http.StatusNotFound:
			errorType = ErrorTypeNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			errorType = ErrorTypeForbidden
		default:
			if statusCode >= 500 {
				errorType = ErrorTypeInternal
			}
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &Error{
		Type:       errorType,
		Message:    message,
		StatusCode: statusCode,
	}
}
