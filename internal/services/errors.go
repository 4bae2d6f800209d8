package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyQueued     = errors.New("already queued")
	ErrAlreadyMember     = errors.New("already a member")
	ErrNotMember         = errors.New("not a member")
	ErrGroupFull         = errors.New("group full")
	ErrEmptyMessage      = errors.New("empty message")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInternal          = errors.New("internal error")
)

// Kind values reported to clients.
const (
	KindNotFound          = "NotFound"
	KindAlreadyQueued     = "AlreadyQueued"
	KindAlreadyMember     = "AlreadyMember"
	KindNotMember         = "NotAMember"
	KindGroupFull         = "GroupFull"
	KindEmptyMessage      = "EmptyMessage"
	KindValidation        = "ValidationError"
	KindInvalidTransition = "InvalidTransition"
	KindAlreadyExists     = "AlreadyExists"
	KindInternal          = "Internal"
)

var kindMarkers = []struct {
	marker error
	kind   string
}{
	{ErrNotFound, KindNotFound},
	{ErrAlreadyQueued, KindAlreadyQueued},
	{ErrAlreadyMember, KindAlreadyMember},
	{ErrNotMember, KindNotMember},
	{ErrGroupFull, KindGroupFull},
	{ErrEmptyMessage, KindEmptyMessage},
	{ErrValidation, KindValidation},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrAlreadyExists, KindAlreadyExists},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err. Untagged errors are Internal; nil yields "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindMarkers {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return KindInternal
}

// IsDomain reports whether err carries one of the caller-facing markers
// rather than an unexpected storage or runtime failure.
func IsDomain(err error) bool {
	kind := Kind(err)
	return kind != "" && kind != KindInternal
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
