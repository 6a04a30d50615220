// Package apperr defines the error taxonomy shared by all workflows.
// Handlers map kinds onto HTTP statuses; services never return raw
// storage or capability errors across the boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	// KindUnexpected is a storage or capability failure not otherwise classified.
	KindUnexpected Kind = iota
	// KindValidation means a missing or malformed field; the caller must resubmit.
	KindValidation
	// KindAuthentication means an absent, invalid or expired token.
	KindAuthentication
	// KindAuthorization means a valid identity with the wrong role or ownership.
	KindAuthorization
	// KindNotFound is an entity lookup miss.
	KindNotFound
	// KindConflict is a duplicate enrollment, course or check-in.
	KindConflict
	// KindStateConflict means the attendance session is not open or already committed.
	KindStateConflict
	// KindBiometricReject is a face-count anomaly or match failure.
	KindBiometricReject
)

// Error carries a classified, user-visible failure.
type Error struct {
	Kind    Kind
	Message string
	// Field names the offending request field for validation errors.
	Field string
	// FaceCount is the number of detected faces on biometric rejections.
	FaceCount int
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a missing or malformed field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// Authentication reports a credential or token failure.
func Authentication(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// Authorization reports a role or ownership failure.
func Authorization(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// NotFound reports an entity lookup miss.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict reports a duplicate entity.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// StateConflict reports an attendance session in the wrong state.
func StateConflict(msg string) error {
	return &Error{Kind: KindStateConflict, Message: msg}
}

// BiometricReject reports a face gate rejection. count is the number of
// detected faces where relevant, 1 for a plain match failure.
func BiometricReject(count int, msg string) error {
	return &Error{Kind: KindBiometricReject, FaceCount: count, Message: msg}
}

// Unexpected wraps a storage or capability failure. It is logged at the
// boundary and surfaced as a generic failure.
func Unexpected(err error) error {
	return &Error{Kind: KindUnexpected, Message: "something went wrong", Err: err}
}

// KindOf extracts the kind of err, or KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
