package services

import (
	"errors"
	"fmt"
)

// Reason codes surfaced with every rejected command. The UI shell keys its
// messages off these, so they are part of the external contract.
type Reason = string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonGone        Reason = "gone"
	ReasonForbidden   Reason = "forbidden"
	ReasonBadBody     Reason = "bad_body"
	ReasonBadTarget   Reason = "bad_target"
	ReasonDuplicate   Reason = "duplicate"
	ReasonSelfFriend  Reason = "self_friend"
	ReasonUnknownKind Reason = "unknown_kind"
	ReasonBadCursor   Reason = "bad_cursor"
	ReasonCollision   Reason = "identity_collision"
)

// ValidationError is a structured rejection. The store is untouched when
// one of these comes back.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func Reject(reason Reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrIdentityCollision fires when a content id already addresses a
// different payload. Fatal for the single write that hit it.
var ErrIdentityCollision = errors.New("content id already bound to a different payload")
