package scanner

import (
	"errors"
	"fmt"
)

// CaptureErrorKind classifies camera acquisition failures.
type CaptureErrorKind string

const (
	DeviceUnavailable CaptureErrorKind = "device_unavailable"
	PermissionDenied  CaptureErrorKind = "permission_denied"
)

// CaptureError means the frame source could not be acquired. The session
// stays Idle and the operator may retry.
type CaptureError struct {
	Kind   CaptureErrorKind
	Reason string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s: %s", e.Kind, e.Reason)
}

// ResolutionErrorKind classifies failures after a payload decoded cleanly.
type ResolutionErrorKind string

const (
	StudentNotFound   ResolutionErrorKind = "student_not_found"
	DuplicateForToday ResolutionErrorKind = "duplicate_for_today"
)

// ResolutionError means the decoded identity could not be turned into a new
// ledger entry. DuplicateForToday is the soft, expected case.
type ResolutionError struct {
	Kind      ResolutionErrorKind
	StudentID string
	Name      string
}

func (e *ResolutionError) Error() string {
	if e.Kind == DuplicateForToday {
		return fmt.Sprintf("resolve scan: %s already marked present today", e.StudentID)
	}
	return fmt.Sprintf("resolve scan: student %s not found", e.StudentID)
}

// AsResolutionError unwraps err into a ResolutionError, or nil.
func AsResolutionError(err error) *ResolutionError {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re
	}
	return nil
}

// AsCaptureError unwraps err into a CaptureError, or nil.
func AsCaptureError(err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
