// Package errors maps the object manager's closed model.Status enum
// to gRPC status codes, and wraps the ad-hoc operational errors that
// arise below that boundary (disk, log I/O, corruption).
package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// ToGRPCCode maps a model.Status to the gRPC code a front-end service
// should surface to its caller.
func ToGRPCCode(s model.Status) codes.Code {
	switch s {
	case model.StatusOK:
		return codes.OK
	case model.StatusUnknownTablet:
		return codes.NotFound
	case model.StatusObjectDoesntExist:
		return codes.NotFound
	case model.StatusObjectExists:
		return codes.AlreadyExists
	case model.StatusWrongVersion:
		return codes.FailedPrecondition
	case model.StatusRetry:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToGRPCStatus builds a *status.Status carrying s and a human-readable
// message, ready to return from a gRPC handler.
func ToGRPCStatus(s model.Status) *status.Status {
	return status.New(ToGRPCCode(s), s.String())
}

// OperationalCode classifies an error originating below the object
// manager's request boundary (disk, log I/O, corruption) rather than
// from the reject-rule evaluation.
type OperationalCode int

const (
	OpCodeInternal OperationalCode = iota + 1
	OpCodeDiskFull
	OpCodeDiskThrottled
	OpCodeCorruptedData
	OpCodeChecksumFailed
)

// OperationalError describes a failure that has no place in the
// model.Status enum. internal/validation returns it for rejected keys
// and values; the log, the disk guard and the codec report their own
// error types, and the object manager maps log and disk guard
// failures to model.StatusRetry rather than propagating them.
type OperationalError struct {
	Code    OperationalCode
	Message string
	Cause   error
}

func (e *OperationalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *OperationalError) Unwrap() error { return e.Cause }

func NewOperationalError(code OperationalCode, message string, cause error) *OperationalError {
	return &OperationalError{Code: code, Message: message, Cause: cause}
}

func ChecksumFailed(expected, actual uint32) *OperationalError {
	return NewOperationalError(OpCodeChecksumFailed, fmt.Sprintf("checksum validation failed: expected %d, got %d", expected, actual), nil)
}

func CorruptedData(message string, cause error) *OperationalError {
	return NewOperationalError(OpCodeCorruptedData, message, cause)
}

func DiskFull(usagePercent float64, availableBytes uint64) *OperationalError {
	return NewOperationalError(OpCodeDiskFull, fmt.Sprintf("disk full: %.2f%% used, %d bytes available", usagePercent, availableBytes), nil)
}

func DiskThrottled(usagePercent float64) *OperationalError {
	return NewOperationalError(OpCodeDiskThrottled, fmt.Sprintf("disk write throttled: %.2f%% used", usagePercent), nil)
}

// IsOperationalError reports whether err is an *OperationalError.
func IsOperationalError(err error) bool {
	_, ok := err.(*OperationalError)
	return ok
}
