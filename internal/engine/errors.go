package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the replicator or a follower.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Entity identifies the affected root entity, if any.
	Entity string

	// Follower identifies the affected follower, if any.
	Follower string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownClass indicates a spawn named a class the schema lacks.
	ErrCodeUnknownClass RuntimeErrorCode = "UNKNOWN_CLASS"

	// ErrCodeUnknownEntity indicates a mutation or update for an entity that
	// is not alive.
	ErrCodeUnknownEntity RuntimeErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUnknownProperty indicates a property path that does not
	// resolve against the entity's class.
	ErrCodeUnknownProperty RuntimeErrorCode = "UNKNOWN_PROPERTY"

	// ErrCodeTypeMismatch indicates a value of the wrong type for a property.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnknownFollower indicates an operation on an unregistered follower.
	ErrCodeUnknownFollower RuntimeErrorCode = "UNKNOWN_FOLLOWER"

	// ErrCodeInvalidAck indicates an acknowledgement of a version the
	// authority never issued.
	ErrCodeInvalidAck RuntimeErrorCode = "INVALID_ACK"

	// ErrCodePacketGap indicates a packet that starts after the follower's
	// version; applying it would skip changes.
	ErrCodePacketGap RuntimeErrorCode = "PACKET_GAP"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Follower != "" && e.Entity != "":
		return fmt.Sprintf("%s: %s (follower=%s, entity=%s)", e.Code, e.Message, e.Follower, e.Entity)
	case e.Follower != "":
		return fmt.Sprintf("%s: %s (follower=%s)", e.Code, e.Message, e.Follower)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// HasCode reports whether err wraps a RuntimeError with the given code.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsGapError returns true if the error is a packet gap error.
// Uses errors.As to handle wrapped errors.
func IsGapError(err error) bool {
	return HasCode(err, ErrCodePacketGap)
}

// IsTypeError returns true if the error is a type mismatch error.
func IsTypeError(err error) bool {
	return HasCode(err, ErrCodeTypeMismatch)
}

func newUnknownClassError(class string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownClass,
		Message: fmt.Sprintf("class %q is not defined", class),
		Details: map[string]string{"class": class},
	}
}

func newUnknownEntityError(id string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownEntity,
		Message: "entity is not alive",
		Entity:  id,
	}
}

func newUnknownPropertyError(id, path string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownProperty,
		Message: fmt.Sprintf("property %q does not exist", path),
		Entity:  id,
		Details: map[string]string{"path": path},
	}
}

func newTypeMismatchError(id, path, want string, got any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("property %q is %s, got %T", path, want, got),
		Entity:  id,
		Details: map[string]string{"path": path, "want": want},
	}
}

func newUnknownFollowerError(follower string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownFollower,
		Message:  "follower is not registered",
		Follower: follower,
	}
}

func newInvalidAckError(follower string, version, current int64) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidAck,
		Message:  fmt.Sprintf("ack %d is beyond issued version %d", version, current),
		Follower: follower,
		Details: map[string]string{
			"version": fmt.Sprintf("%d", version),
			"current": fmt.Sprintf("%d", current),
		},
	}
}

func newGapError(follower string, from, have int64) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodePacketGap,
		Message:  fmt.Sprintf("packet starts at %d but follower is at %d", from, have),
		Follower: follower,
		Details: map[string]string{
			"from": fmt.Sprintf("%d", from),
			"have": fmt.Sprintf("%d", have),
		},
	}
}
