package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are namespaced by module: COMMON, KB, SIMPLIFY.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeUnsupportedMedia   ErrorCode = "COMMON_012"
	ErrCodePayloadTooLarge    ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used by call sites that predate the module prefixes.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
)

// Knowledge base error codes. All of them are startup failures.
const (
	ErrCodeKBDuplicateKey      ErrorCode = "KB_001"
	ErrCodeKBDuplicateSynonym  ErrorCode = "KB_002"
	ErrCodeKBInvalidEntry      ErrorCode = "KB_003"
	ErrCodeKBSourceUnavailable ErrorCode = "KB_004"
	ErrCodeKBSchemaViolation   ErrorCode = "KB_005"
	ErrCodeKBTestNotFound      ErrorCode = "KB_006"
)

// Simplification request error codes.
const (
	ErrCodeSimplifyEmptyInput  ErrorCode = "SIMPLIFY_001"
	ErrCodeSimplifyTextTooLong ErrorCode = "SIMPLIFY_002"
	ErrCodeSimplifyNoFile      ErrorCode = "SIMPLIFY_003"
	ErrCodeSimplifyUnreadable  ErrorCode = "SIMPLIFY_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeUnsupportedMedia:   http.StatusUnsupportedMediaType,
	ErrCodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeKBDuplicateKey:      http.StatusInternalServerError,
	ErrCodeKBDuplicateSynonym:  http.StatusInternalServerError,
	ErrCodeKBInvalidEntry:      http.StatusInternalServerError,
	ErrCodeKBSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeKBSchemaViolation:   http.StatusInternalServerError,
	ErrCodeKBTestNotFound:      http.StatusNotFound,

	ErrCodeSimplifyEmptyInput:  http.StatusBadRequest,
	ErrCodeSimplifyTextTooLong: http.StatusBadRequest,
	ErrCodeSimplifyNoFile:      http.StatusBadRequest,
	ErrCodeSimplifyUnreadable:  http.StatusUnprocessableEntity,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeUnsupportedMedia:   "unsupported media type",
	ErrCodePayloadTooLarge:    "payload too large",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeKBDuplicateKey:      "duplicate test key in knowledge base",
	ErrCodeKBDuplicateSynonym:  "synonym claimed by two knowledge base entries",
	ErrCodeKBInvalidEntry:      "invalid knowledge base entry",
	ErrCodeKBSourceUnavailable: "knowledge base source unavailable",
	ErrCodeKBSchemaViolation:   "knowledge base document does not match schema",
	ErrCodeKBTestNotFound:      "test not found in knowledge base",

	ErrCodeSimplifyEmptyInput:  "no text provided",
	ErrCodeSimplifyTextTooLong: "text too long",
	ErrCodeSimplifyNoFile:      "no file provided",
	ErrCodeSimplifyUnreadable:  "document text could not be extracted",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
