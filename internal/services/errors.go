package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a business refusal. Handlers map kinds to HTTP status
// codes; anything that is not an *Error is an infrastructure failure.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindStateConflict ErrorKind = "state_conflict"
	KindProximity     ErrorKind = "proximity"
)

// Machine-readable refusal codes returned to clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeAlreadyCheckedIn  = "ALREADY_CHECKED_IN"
	CodeCheckinInProgress = "CHECKIN_IN_PROGRESS"
	CodeMasjidNotFound    = "MASJID_NOT_FOUND"
	CodeTooFar            = "TOO_FAR"
	CodeProfileNotFound   = "PROFILE_NOT_FOUND"
	CodeNoActiveVisit     = "NO_ACTIVE_VISIT"
	CodeSnapshotNotFound  = "SNAPSHOT_NOT_FOUND"
)

// Error is a refusal by a business rule. DistanceMeters and RadiusMeters are
// only set for KindProximity.
type Error struct {
	Kind           ErrorKind
	Code           string
	Message        string
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *Error) Error() string {
	return e.Message
}

// AsError unwraps err to a business refusal, if it is one.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a refusal of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func conflictError(code, msg string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: msg}
}

func tooFarError(distance, radius float64) *Error {
	return &Error{
		Kind:           KindProximity,
		Code:           CodeTooFar,
		Message:        fmt.Sprintf("You are %.0fm away. Must be within %.0fm to check in", distance, radius),
		DistanceMeters: distance,
		RadiusMeters:   radius,
	}
}
