// Package errors provides unified error handling for the transcription pipeline.
// Codes classify failures into the retry/notify taxonomy used by the dispatcher
// and map onto gRPC status codes for the inference sidecar boundary.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain identifies our errors inside gRPC ErrorInfo details.
const ErrorDomain = "speakerline"

// Code is a structured error code.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	NotFound
	Unavailable
	Timeout
	Cancelled

	// Engine outcomes
	RateLimited
	AuthFailed
	QuotaExceeded
	EngineFatal

	// Local validation
	AudioEmpty
	AudioTooShort
	AudioTooLarge
	SpeakerBusy

	// Configuration
	ConfigMissing
	ConfigInvalid

	// Persistence
	StoreFailed
)

var codeNames = map[Code]string{
	Unknown:         "UNKNOWN",
	Internal:        "INTERNAL",
	InvalidArgument: "INVALID_ARGUMENT",
	NotFound:        "NOT_FOUND",
	Unavailable:     "UNAVAILABLE",
	Timeout:         "TIMEOUT",
	Cancelled:       "CANCELLED",
	RateLimited:     "RATE_LIMITED",
	AuthFailed:      "AUTH_FAILED",
	QuotaExceeded:   "QUOTA_EXCEEDED",
	EngineFatal:     "ENGINE_FATAL",
	AudioEmpty:      "AUDIO_EMPTY",
	AudioTooShort:   "AUDIO_TOO_SHORT",
	AudioTooLarge:   "AUDIO_TOO_LARGE",
	SpeakerBusy:     "SPEAKER_BUSY",
	ConfigMissing:   "CONFIG_MISSING",
	ConfigInvalid:   "CONFIG_INVALID",
	StoreFailed:     "STORE_FAILED",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// ParseCode is the inverse of Code.String; unknown names map to Unknown.
func ParseCode(s string) Code {
	for c, name := range codeNames {
		if name == s {
			return c
		}
	}
	return Unknown
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:         codes.Unknown,
	Internal:        codes.Internal,
	InvalidArgument: codes.InvalidArgument,
	NotFound:        codes.NotFound,
	Unavailable:     codes.Unavailable,
	Timeout:         codes.DeadlineExceeded,
	Cancelled:       codes.Canceled,
	RateLimited:     codes.ResourceExhausted,
	AuthFailed:      codes.Unauthenticated,
	QuotaExceeded:   codes.PermissionDenied,
	EngineFatal:     codes.Internal,
	AudioEmpty:      codes.InvalidArgument,
	AudioTooShort:   codes.InvalidArgument,
	AudioTooLarge:   codes.InvalidArgument,
	SpeakerBusy:     codes.Aborted,
	ConfigMissing:   codes.FailedPrecondition,
	ConfigInvalid:   codes.InvalidArgument,
	StoreFailed:     codes.Internal,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus returns a gRPC status with an ErrorInfo detail carrying the code.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)
	info := &errdetails.ErrorInfo{
		Reason:   e.Code.String(),
		Domain:   ErrorDomain,
		Metadata: e.Metadata,
	}
	if withDetail, err := st.WithDetails(info); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts an AppError from a gRPC error.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return &AppError{
				Code:     ParseCode(info.GetReason()),
				Message:  st.Message(),
				Metadata: info.GetMetadata(),
				Cause:    err,
			}
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NotFound
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal, codes.DataLoss:
		return EngineFatal
	case codes.Unauthenticated:
		return AuthFailed
	case codes.PermissionDenied:
		return QuotaExceeded
	case codes.FailedPrecondition:
		return ConfigMissing
	case codes.ResourceExhausted:
		return RateLimited
	case codes.Aborted:
		return Unavailable
	default:
		return Unknown
	}
}

// CodeOf returns the code of the first AppError in err's chain, or Unknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// IsRetryable returns true for rate limits and transient I/O failures.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, RateLimited:
		return true
	default:
		return false
	}
}

// IsValidation reports local audio validation failures (logged only, never retried).
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case AudioEmpty, AudioTooShort, AudioTooLarge:
		return true
	default:
		return false
	}
}

// IsUserVisible reports errors that warrant a user notification:
// configuration problems and permanent engine failures.
func IsUserVisible(err error) bool {
	switch CodeOf(err) {
	case ConfigMissing, ConfigInvalid, AuthFailed, QuotaExceeded, EngineFatal:
		return true
	default:
		return false
	}
}
