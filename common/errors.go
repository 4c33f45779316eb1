package common

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceLimitExceeded is matched by every *ResourceLimitError.
	ErrResourceLimitExceeded = errors.New("gpu resource limit exceeded")

	// ErrContextCreation is matched by every *ContextCreationError.
	ErrContextCreation = errors.New("context creation failed")

	// ErrSessionClosed is returned by operations issued against a session that has been torn down.
	ErrSessionClosed = errors.New("session is closed")
)

// ResourceLimitError reports that a GPU hardware limit was hit, e.g. too many simultaneous render targets.
// It is never retried automatically.
type ResourceLimitError struct {
	// Resource names the limited resource, e.g. "color attachments".
	Resource string
	// Limit is the maximum the device supports.
	Limit int
	// Requested is the amount the operation asked for.
	Requested int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("too many %s: requested %d, device supports %d", e.Resource, e.Requested, e.Limit)
}

func (e *ResourceLimitError) Is(target error) bool {
	return target == ErrResourceLimitExceeded
}

// ContextCreationError wraps a failure returned by a context factory.
type ContextCreationError struct {
	// Shared is true when the failing context was requested as a member of an existing object space.
	Shared bool
	// Err is the factory error.
	Err error
}

func (e *ContextCreationError) Error() string {
	if e.Shared {
		return fmt.Sprintf("failed to create shared context: %v", e.Err)
	}
	return fmt.Sprintf("failed to create context: %v", e.Err)
}

func (e *ContextCreationError) Is(target error) bool {
	return target == ErrContextCreation
}

func (e *ContextCreationError) Unwrap() error {
	return e.Err
}
