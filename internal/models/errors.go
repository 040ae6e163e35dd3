package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the task domain reports to its callers.
// Transports switch on the kind instead of on concrete error values.
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindInvalidInput
	ErrorKindDuplicateDescription
	ErrorKindHighPriorityQuotaExceeded
	ErrorKindOpenTaskQuotaExceeded
	ErrorKindTaskImmutable
	ErrorKindAlreadyCompleted
	ErrorKindAccessDenied
	ErrorKindNotFound
)

var errorKindNames = [...]string{
	ErrorKindUnknown:                   "unknown",
	ErrorKindInvalidInput:              "invalid_input",
	ErrorKindDuplicateDescription:      "duplicate_description",
	ErrorKindHighPriorityQuotaExceeded: "high_priority_quota_exceeded",
	ErrorKindOpenTaskQuotaExceeded:     "open_task_quota_exceeded",
	ErrorKindTaskImmutable:             "task_immutable",
	ErrorKindAlreadyCompleted:          "already_completed",
	ErrorKindAccessDenied:              "access_denied",
	ErrorKindNotFound:                  "not_found",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return errorKindNames[ErrorKindUnknown]
}

// Error is a domain failure tagged with its kind.
//
// Two errors are considered equal by errors.Is when their kinds match,
// so a detailed error such as "description must be at least 3 characters"
// still satisfies errors.Is(err, ErrInvalidInput).
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidInput              = &Error{Kind: ErrorKindInvalidInput, Message: "invalid input"}
	ErrDuplicateDescription      = &Error{Kind: ErrorKindDuplicateDescription, Message: "description must be unique per user per day"}
	ErrHighPriorityQuotaExceeded = &Error{Kind: ErrorKindHighPriorityQuotaExceeded, Message: "high priority task quota exceeded"}
	ErrOpenTaskQuotaExceeded     = &Error{Kind: ErrorKindOpenTaskQuotaExceeded, Message: "open task quota exceeded"}
	ErrTaskImmutable             = &Error{Kind: ErrorKindTaskImmutable, Message: "completed task cannot be updated"}
	ErrAlreadyCompleted          = &Error{Kind: ErrorKindAlreadyCompleted, Message: "task is already completed"}
	ErrAccessDenied              = &Error{Kind: ErrorKindAccessDenied, Message: "user can only access their own tasks"}
	ErrTaskNotFound              = &Error{Kind: ErrorKindNotFound, Message: "task not found"}
)

// KindOf returns the kind of the first *Error in err's chain,
// or ErrorKindUnknown for errors that did not originate in the domain.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ErrorKindUnknown
}
