package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinDescriptionLength = 3
	MaxDescriptionLength = 500
	MaxUserIDLength      = 100
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority accepts the priority name in any letter case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", NewError(ErrorKindInvalidInput, "invalid priority: %q", s)
	}
	return p, nil
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusCompleted Status = "COMPLETED"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", NewError(ErrorKindInvalidInput, "invalid status: %q", s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusCompleted
}

// Task is an immutable value. Every mutation returns a new Task
// and leaves the receiver untouched.
type Task struct {
	id          string
	userID      string
	description string
	priority    Priority
	status      Status
	createdAt   time.Time
	updatedAt   time.Time
}

// NewTask creates an open task. The description is trimmed and
// createdAt doubles as the initial updatedAt.
func NewTask(id, userID, description string, priority Priority, createdAt time.Time) (Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Task{}, NewError(ErrorKindInvalidInput, "task id is required")
	}

	userID, err := NormalizeUserID(userID)
	if err != nil {
		return Task{}, err
	}

	description, err = NormalizeDescription(description)
	if err != nil {
		return Task{}, err
	}

	if !priority.IsValid() {
		return Task{}, NewError(ErrorKindInvalidInput, "invalid priority: %q", priority)
	}

	if createdAt.IsZero() {
		return Task{}, NewError(ErrorKindInvalidInput, "creation time is required")
	}
	createdAt = createdAt.UTC()

	return Task{
		id:          id,
		userID:      userID,
		description: description,
		priority:    priority,
		status:      StatusOpen,
		createdAt:   createdAt,
		updatedAt:   createdAt,
	}, nil
}

// RestoreTask rebuilds a task loaded from storage. Values are trusted
// and not revalidated.
func RestoreTask(
	id string,
	userID string,
	description string,
	priority Priority,
	status Status,
	createdAt time.Time,
	updatedAt time.Time,
) Task {
	return Task{
		id:          id,
		userID:      userID,
		description: description,
		priority:    priority,
		status:      status,
		createdAt:   createdAt.UTC(),
		updatedAt:   updatedAt.UTC(),
	}
}

func (t Task) ID() string           { return t.id }
func (t Task) UserID() string       { return t.userID }
func (t Task) Description() string  { return t.description }
func (t Task) Priority() Priority   { return t.priority }
func (t Task) Status() Status       { return t.status }
func (t Task) CreatedAt() time.Time { return t.createdAt }
func (t Task) UpdatedAt() time.Time { return t.updatedAt }

// UpdateDescription returns the task with a new description.
// The task itself is returned when the trimmed description is unchanged.
func (t Task) UpdateDescription(description string, at time.Time) (Task, error) {
	if t.IsCompleted() {
		return Task{}, ErrTaskImmutable
	}

	description, err := NormalizeDescription(description)
	if err != nil {
		return Task{}, err
	}
	if description == t.description {
		return t, nil
	}

	updated := t
	updated.description = description
	updated.touch(at)
	return updated, nil
}

func (t Task) ChangePriority(priority Priority, at time.Time) (Task, error) {
	if t.IsCompleted() {
		return Task{}, ErrTaskImmutable
	}
	if !priority.IsValid() {
		return Task{}, NewError(ErrorKindInvalidInput, "invalid priority: %q", priority)
	}
	if priority == t.priority {
		return t, nil
	}

	updated := t
	updated.priority = priority
	updated.touch(at)
	return updated, nil
}

func (t Task) Complete(at time.Time) (Task, error) {
	if t.IsCompleted() {
		return Task{}, ErrAlreadyCompleted
	}

	updated := t
	updated.status = StatusCompleted
	updated.touch(at)
	return updated, nil
}

func (t Task) EnsureOwnership(userID string) error {
	if t.userID != userID {
		return ErrAccessDenied
	}
	return nil
}

func (t Task) IsHighPriority() bool {
	return t.priority == PriorityHigh
}

func (t Task) IsOpen() bool {
	return t.status == StatusOpen
}

func (t Task) IsCompleted() bool {
	return t.status == StatusCompleted
}

// WasCreatedOn compares the UTC calendar day of createdAt with day.
func (t Task) WasCreatedOn(day Date) bool {
	return DateOf(t.createdAt) == day
}

// touch keeps updatedAt monotonically non-decreasing even if the
// clock goes backwards.
func (t *Task) touch(at time.Time) {
	at = at.UTC()
	if at.After(t.updatedAt) {
		t.updatedAt = at
	}
}

func NormalizeDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", NewError(ErrorKindInvalidInput, "description cannot be empty")
	}

	length := utf8.RuneCountInString(description)
	if length < MinDescriptionLength {
		return "", NewError(ErrorKindInvalidInput,
			"description must be at least %d characters", MinDescriptionLength)
	}
	if length > MaxDescriptionLength {
		return "", NewError(ErrorKindInvalidInput,
			"description cannot exceed %d characters", MaxDescriptionLength)
	}
	return description, nil
}

func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", NewError(ErrorKindInvalidInput, "user id is required")
	}
	if utf8.RuneCountInString(userID) > MaxUserIDLength {
		return "", NewError(ErrorKindInvalidInput,
			"user id cannot exceed %d characters", MaxUserIDLength)
	}
	return userID, nil
}

// TaskChanges lists the fields an update asks for. Nil means keep.
type TaskChanges struct {
	Description *string
	Priority    *Priority
	Status      *Status
}

func (c TaskChanges) IsEmpty() bool {
	return c.Description == nil && c.Priority == nil && c.Status == nil
}
