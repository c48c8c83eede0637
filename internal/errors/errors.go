package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents application error codes.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrTimeout    ErrorCode = "TIMEOUT"
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrBusy       ErrorCode = "BUSY"

	// Assessment pipeline errors
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrAudioTooShort          ErrorCode = "AUDIO_TOO_SHORT"
	ErrAudioTooLong           ErrorCode = "AUDIO_TOO_LONG"
	ErrAudioUnsupported       ErrorCode = "AUDIO_UNSUPPORTED"
	ErrAssessorRejected       ErrorCode = "ASSESSOR_REJECTED"
	ErrAssessorUnavailable    ErrorCode = "ASSESSOR_UNAVAILABLE"
	ErrSynthesizerRejected    ErrorCode = "SYNTHESIZER_REJECTED"
	ErrSynthesizerUnavailable ErrorCode = "SYNTHESIZER_UNAVAILABLE"
	ErrVoiceLanguageMismatch  ErrorCode = "VOICE_LANGUAGE_MISMATCH"

	// Service-specific errors
	ErrAIService      ErrorCode = "AI_SERVICE_ERROR"
	ErrStorageService ErrorCode = "STORAGE_SERVICE_ERROR"
)

// AppError represents an application error with code and metadata.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// Detail returns a string detail value, or "" when absent.
func (e *AppError) Detail(key string) string {
	if e.Details == nil {
		return ""
	}
	s, _ := e.Details[key].(string)
	return s
}

// HTTPStatus returns the HTTP status code for the error.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrValidation, ErrInvalidRequest, ErrAudioTooShort, ErrVoiceLanguageMismatch:
		return http.StatusBadRequest
	case ErrAudioTooLong:
		return http.StatusRequestEntityTooLarge
	case ErrAudioUnsupported:
		return http.StatusUnsupportedMediaType
	case ErrAssessorRejected, ErrSynthesizerRejected:
		return http.StatusUnprocessableEntity
	case ErrAssessorUnavailable, ErrSynthesizerUnavailable:
		return http.StatusServiceUnavailable
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus returns the gRPC status for the error.
func (e *AppError) GRPCStatus() *status.Status {
	var code codes.Code
	switch e.Code {
	case ErrValidation, ErrInvalidRequest, ErrAudioTooShort, ErrAudioTooLong,
		ErrAudioUnsupported, ErrVoiceLanguageMismatch:
		code = codes.InvalidArgument
	case ErrAssessorRejected, ErrSynthesizerRejected:
		code = codes.FailedPrecondition
	case ErrAssessorUnavailable, ErrSynthesizerUnavailable:
		code = codes.Unavailable
	case ErrNotFound:
		code = codes.NotFound
	case ErrTimeout:
		code = codes.DeadlineExceeded
	case ErrBusy:
		code = codes.ResourceExhausted
	default:
		code = codes.Internal
	}
	return status.New(code, e.Message)
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err's chain contains an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As is a thin alias for the standard library's errors.As.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Common error constructors
func Internal(message string) *AppError {
	return New(ErrInternal, message)
}

func InternalWrap(message string, err error) *AppError {
	return Wrap(ErrInternal, message, err)
}

func Validation(message string) *AppError {
	return New(ErrValidation, message)
}

func NotFound(resource string) *AppError {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidRequest(message string) *AppError {
	return New(ErrInvalidRequest, message)
}

func AudioTooShort(seconds, min float64) *AppError {
	return New(ErrAudioTooShort, fmt.Sprintf("audio is %.2fs, minimum is %.2fs", seconds, min)).
		WithDetails(map[string]interface{}{"duration_seconds": seconds})
}

func AudioTooLong(seconds, max float64) *AppError {
	return New(ErrAudioTooLong, fmt.Sprintf("audio is %.2fs, maximum is %.2fs", seconds, max)).
		WithDetails(map[string]interface{}{"duration_seconds": seconds})
}

func AudioUnsupported(message string) *AppError {
	return New(ErrAudioUnsupported, message)
}

func AssessorRejected(reason string) *AppError {
	return New(ErrAssessorRejected, "speech assessment rejected: "+reason).
		WithDetails(map[string]interface{}{"reason": reason})
}

func AssessorUnavailable(err error) *AppError {
	return Wrap(ErrAssessorUnavailable, "speech assessment service unavailable", err)
}

func SynthesizerRejected(reason string) *AppError {
	return New(ErrSynthesizerRejected, "speech synthesis rejected: "+reason).
		WithDetails(map[string]interface{}{"reason": reason})
}

func SynthesizerUnavailable(err error) *AppError {
	return Wrap(ErrSynthesizerUnavailable, "speech synthesis service unavailable", err)
}

func VoiceLanguageMismatch(detected, expected string) *AppError {
	return New(ErrVoiceLanguageMismatch,
		fmt.Sprintf("text language %q does not match voice language %q", detected, expected)).
		WithDetails(map[string]interface{}{"detected": detected, "expected": expected})
}
