package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"
)

// Configuration error codes. Configuration errors are fatal: they fail fast
// at startup or before any job is enqueued, never at job-execution time.
const (
	ErrCodeConfigInvalid     ErrorCode = "CFG_001"
	ErrCodeProfileUnknown    ErrorCode = "CFG_002"
	ErrCodeResolutionInvalid ErrorCode = "CFG_003"
	ErrCodeRegionInvalid     ErrorCode = "CFG_004"
)

// Spatial grid error codes.
const (
	ErrCodeQuantumIDInvalid   ErrorCode = "GRID_001"
	ErrCodeResolutionMismatch ErrorCode = "GRID_002"
	ErrCodeQuantumNotFound    ErrorCode = "GRID_003"
)

// Scoring engine error codes.
const (
	ErrCodeScoringFailed  ErrorCode = "SCORE_001"
	ErrCodeProfileInvalid ErrorCode = "SCORE_002"
)

// Mismatch detection error codes.
const (
	ErrCodeMismatchScanFailed ErrorCode = "MM_001"
	ErrCodeThresholdsInvalid  ErrorCode = "MM_002"
)

// Similarity index error codes. Malformed-vector conditions are programming
// errors: they fail loudly and are never swallowed.
const (
	ErrCodeVectorMalformed  ErrorCode = "IDX_001"
	ErrCodeIndexUnavailable ErrorCode = "IDX_002"
	ErrCodeIndexQueryFailed ErrorCode = "IDX_003"
)

// Job queue error codes.
const (
	ErrCodeJobNotFound          ErrorCode = "JOB_001"
	ErrCodeJobPermanentFailure  ErrorCode = "JOB_002"
	ErrCodeJobTransitionInvalid ErrorCode = "JOB_003"
	ErrCodeQueueUnavailable     ErrorCode = "JOB_004"
)

// Scan orchestration error codes.
const (
	ErrCodeScanNotFound ErrorCode = "SCAN_001"
)

// Feature provider error codes. Provider errors are retryable within a job's
// retry budget; exhaustion surfaces as ErrCodeJobPermanentFailure.
const (
	ErrCodeProviderUnavailable     ErrorCode = "PROV_001"
	ErrCodeProviderTimeout         ErrorCode = "PROV_002"
	ErrCodeProviderResponseInvalid ErrorCode = "PROV_003"
	ErrCodeProviderRateLimited     ErrorCode = "PROV_004"
)

// Short aliases used at call sites.
const (
	CodeInternal      = ErrCodeInternal
	CodeInvalidParam  = ErrCodeBadRequest
	CodeNotFound      = ErrCodeNotFound
	CodeConflict      = ErrCodeConflict
	CodeRateLimit     = ErrCodeTooManyRequests
	CodeConfiguration = ErrCodeConfigInvalid
	CodeUnknown       = ErrorCode("UNKNOWN")
	CodeOK            = ErrorCode("OK")
)

// retryableCodes classifies the failure modes a worker may retry. Everything
// else is terminal for the attempting job.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeProviderUnavailable:     true,
	ErrCodeProviderTimeout:         true,
	ErrCodeProviderResponseInvalid: true,
	ErrCodeProviderRateLimited:     true,
	ErrCodeServiceUnavailable:      true,
	ErrCodeTimeout:                 true,
}

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeConfigInvalid:     http.StatusBadRequest,
	ErrCodeProfileUnknown:    http.StatusBadRequest,
	ErrCodeResolutionInvalid: http.StatusBadRequest,
	ErrCodeRegionInvalid:     http.StatusBadRequest,

	ErrCodeQuantumIDInvalid:   http.StatusBadRequest,
	ErrCodeResolutionMismatch: http.StatusConflict,
	ErrCodeQuantumNotFound:    http.StatusNotFound,

	ErrCodeScoringFailed:  http.StatusInternalServerError,
	ErrCodeProfileInvalid: http.StatusBadRequest,

	ErrCodeMismatchScanFailed: http.StatusInternalServerError,
	ErrCodeThresholdsInvalid:  http.StatusBadRequest,

	ErrCodeVectorMalformed:  http.StatusInternalServerError,
	ErrCodeIndexUnavailable: http.StatusServiceUnavailable,
	ErrCodeIndexQueryFailed: http.StatusInternalServerError,

	ErrCodeJobNotFound:          http.StatusNotFound,
	ErrCodeJobPermanentFailure:  http.StatusInternalServerError,
	ErrCodeJobTransitionInvalid: http.StatusConflict,
	ErrCodeQueueUnavailable:     http.StatusServiceUnavailable,

	ErrCodeScanNotFound: http.StatusNotFound,

	ErrCodeProviderUnavailable:     http.StatusBadGateway,
	ErrCodeProviderTimeout:         http.StatusGatewayTimeout,
	ErrCodeProviderResponseInvalid: http.StatusBadGateway,
	ErrCodeProviderRateLimited:     http.StatusTooManyRequests,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeConfigInvalid:     "invalid configuration",
	ErrCodeProfileUnknown:    "unknown use-case profile",
	ErrCodeResolutionInvalid: "invalid grid resolution",
	ErrCodeRegionInvalid:     "invalid scan region",

	ErrCodeQuantumIDInvalid:   "invalid quantum identifier",
	ErrCodeResolutionMismatch: "grid resolution cannot change mid-run",
	ErrCodeQuantumNotFound:    "quantum not found",

	ErrCodeScoringFailed:  "utility scoring failed",
	ErrCodeProfileInvalid: "invalid use-case profile definition",

	ErrCodeMismatchScanFailed: "mismatch scan failed",
	ErrCodeThresholdsInvalid:  "invalid mismatch thresholds",

	ErrCodeVectorMalformed:  "malformed feature vector",
	ErrCodeIndexUnavailable: "similarity index unavailable",
	ErrCodeIndexQueryFailed: "similarity query failed",

	ErrCodeJobNotFound:          "job not found",
	ErrCodeJobPermanentFailure:  "job permanently failed after exhausting retries",
	ErrCodeJobTransitionInvalid: "invalid job status transition",
	ErrCodeQueueUnavailable:     "job queue unavailable",

	ErrCodeScanNotFound: "scan not found",

	ErrCodeProviderUnavailable:     "feature provider unavailable",
	ErrCodeProviderTimeout:         "feature provider timed out",
	ErrCodeProviderResponseInvalid: "feature provider returned malformed data",
	ErrCodeProviderRateLimited:     "feature provider rate limited",
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
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
