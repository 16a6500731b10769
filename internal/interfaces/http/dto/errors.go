package dto

import (
	"net/http"
	"strings"
)

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// ErrorCodeHTTPStatus maps domain and transport error codes to HTTP
// status codes. Domain codes come through verbatim from DomainError;
// the ERR_ prefixed codes originate in the HTTP layer itself.
var ErrorCodeHTTPStatus = map[string]int{
	// Transport-level errors
	ErrCodeUnknown:      http.StatusInternalServerError,
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Shared domain errors
	"NOT_FOUND":            http.StatusNotFound,
	"ALREADY_EXISTS":       http.StatusConflict,
	"INVALID_INPUT":        http.StatusBadRequest,
	"UNAUTHORIZED":         http.StatusUnauthorized,
	"FORBIDDEN":            http.StatusForbidden,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"DUPLICATE_REQUEST":    http.StatusConflict,

	// Business rule violations -> 422 Unprocessable Entity
	"INVALID_STATE":                http.StatusUnprocessableEntity,
	"INVALID_AMOUNT":               http.StatusUnprocessableEntity,
	"INSUFFICIENT_ADVANCE_BALANCE": http.StatusUnprocessableEntity,
	"INVOICE_NOT_ELIGIBLE":         http.StatusUnprocessableEntity,
	"ILLEGAL_STATE_TRANSITION":     http.StatusUnprocessableEntity,
	"HAS_ALLOCATIONS":              http.StatusUnprocessableEntity,
	"ALREADY_PAID":                 http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unmapped INVALID_ codes are treated as input validation failures;
// anything else unmapped is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
