package simplemedia

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrMediaNotFound indicates a media record was not found
	ErrMediaNotFound = errors.New("media not found")

	// ErrObjectNotFound indicates a blob was not found in storage
	ErrObjectNotFound = errors.New("object not found")

	// ErrValidationRejected indicates an upload failed a validation rule
	ErrValidationRejected = errors.New("validation rejected")

	// ErrStorageFailure indicates both the primary and the fallback write failed
	ErrStorageFailure = errors.New("storage failure")

	// ErrDerivativeGeneration indicates a required derivative could not be produced
	ErrDerivativeGeneration = errors.New("derivative generation failed")

	// ErrUnknownOwnerType indicates an owner type with no registered handler
	ErrUnknownOwnerType = errors.New("unknown owner type")
)

// RejectReason is a machine readable validation failure code.
type RejectReason string

const (
	RejectTooLarge        RejectReason = "too_large"
	RejectUnsupportedType RejectReason = "unsupported_type"
	RejectUndecodable     RejectReason = "undecodable"
	RejectDimensions      RejectReason = "dimensions"
	RejectTooNarrow       RejectReason = "too_narrow"
	RejectAspectRatio     RejectReason = "aspect_ratio"
	RejectHostNotAllowed  RejectReason = "host_not_allowed"
	RejectInvalidURL      RejectReason = "invalid_url"
	RejectEmpty           RejectReason = "empty"
)

// ValidationError is returned when an upload is rejected. No state is created
// when it is returned.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload rejected (%s): %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationRejected
}

// Reject builds a ValidationError.
func Reject(reason RejectReason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RejectReasonOf extracts the reject reason from err, if any.
func RejectReasonOf(err error) (RejectReason, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}

// MediaError represents an error related to media operations
type MediaError struct {
	MediaID uuid.UUID
	Op      string
	Err     error
}

func (e *MediaError) Error() string {
	if e.MediaID == uuid.Nil {
		return fmt.Sprintf("media operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("media operation %s failed for media %s: %v", e.Op, e.MediaID, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
