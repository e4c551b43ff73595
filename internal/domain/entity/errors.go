package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure an operation can return to a caller.
// Each operation surfaces a subset of these kinds; nothing is raised as an
// uncontrolled fault.
type ErrorKind string

const (
	KindInvalidAmount      ErrorKind = "InvalidAmount"
	KindInvalidDetails     ErrorKind = "InvalidDetails"
	KindInvalidToken       ErrorKind = "InvalidToken"
	KindInvalidDestination ErrorKind = "InvalidDestination"
	KindInvalidInvoiceID   ErrorKind = "InvalidInvoiceId"
	KindBadSize            ErrorKind = "BadSize"
	KindNotAuthorized      ErrorKind = "NotAuthorized"
	KindNotFound           ErrorKind = "NotFound"
	KindNotYetPaid         ErrorKind = "NotYetPaid"
	KindAlreadyRefunded    ErrorKind = "AlreadyRefunded"
	KindExpired            ErrorKind = "Expired"
	KindNoRefundDest       ErrorKind = "NoRefundDestination"
	KindTransferError      ErrorKind = "TransferError"
	KindOther              ErrorKind = "Other"
)

// Error is the typed result every fallible operation returns: a kind plus an
// optional human-readable message with enough context to act on.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// NewError creates a typed operation error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a typed operation error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the operation error kind from err, or KindOther if err is
// not a typed operation error.
func KindOf(err error) ErrorKind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindOther
}

// IsKind reports whether err is a typed operation error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
