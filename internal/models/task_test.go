package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestTask(t *testing.T, priority Priority) Task {
	t.Helper()
	task, err := NewTask("task-1", "u1", "Buy milk", priority, testNow)
	require.NoError(t, err)
	return task
}

func TestNewTask(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		userID      string
		description string
		priority    Priority
		createdAt   time.Time
		wantErr     string
	}{
		{
			name:        "valid task",
			id:          "task-1",
			userID:      "u1",
			description: "Buy milk",
			priority:    PriorityMedium,
			createdAt:   testNow,
		},
		{
			name:        "missing id",
			userID:      "u1",
			description: "Buy milk",
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "task id is required",
		},
		{
			name:        "blank user id",
			id:          "task-1",
			userID:      "   ",
			description: "Buy milk",
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "user id is required",
		},
		{
			name:        "user id too long",
			id:          "task-1",
			userID:      strings.Repeat("u", MaxUserIDLength+1),
			description: "Buy milk",
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "user id cannot exceed 100 characters",
		},
		{
			name:        "blank description",
			id:          "task-1",
			userID:      "u1",
			description: " \t ",
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "description cannot be empty",
		},
		{
			name:        "description too short after trim",
			id:          "task-1",
			userID:      "u1",
			description: "  ab  ",
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "description must be at least 3 characters",
		},
		{
			name:        "description too long",
			id:          "task-1",
			userID:      "u1",
			description: strings.Repeat("d", MaxDescriptionLength+1),
			priority:    PriorityLow,
			createdAt:   testNow,
			wantErr:     "description cannot exceed 500 characters",
		},
		{
			name:        "unknown priority",
			id:          "task-1",
			userID:      "u1",
			description: "Buy milk",
			priority:    Priority("URGENT"),
			createdAt:   testNow,
			wantErr:     `invalid priority: "URGENT"`,
		},
		{
			name:        "missing creation time",
			id:          "task-1",
			userID:      "u1",
			description: "Buy milk",
			priority:    PriorityLow,
			wantErr:     "creation time is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewTask(tt.id, tt.userID, tt.description, tt.priority, tt.createdAt)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, task.ID())
			assert.Equal(t, StatusOpen, task.Status())
			assert.Equal(t, tt.createdAt, task.CreatedAt())
			assert.Equal(t, task.CreatedAt(), task.UpdatedAt())
		})
	}
}

func TestNewTask_TrimsDescription(t *testing.T) {
	for _, length := range []int{MinDescriptionLength, 42, MaxDescriptionLength} {
		body := strings.Repeat("x", length)
		task, err := NewTask("task-1", "u1", "  \t"+body+"\n ", PriorityLow, testNow)
		require.NoError(t, err, "length %d", length)
		assert.Equal(t, body, task.Description())
	}
}

func TestNewTask_CountsCharactersNotBytes(t *testing.T) {
	task, err := NewTask("task-1", "u1", "чай", PriorityLow, testNow)
	require.NoError(t, err)
	assert.Equal(t, "чай", task.Description())

	_, err = NewTask("task-1", "u1", strings.Repeat("ж", MaxDescriptionLength), PriorityLow, testNow)
	assert.NoError(t, err)
}

func TestTask_UpdateDescription(t *testing.T) {
	task := newTestTask(t, PriorityMedium)
	later := testNow.Add(time.Hour)

	updated, err := task.UpdateDescription("  Buy oat milk ", later)
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", updated.Description())
	assert.Equal(t, later, updated.UpdatedAt())
	assert.Equal(t, "Buy milk", task.Description(), "receiver must stay untouched")

	same, err := task.UpdateDescription(" Buy milk ", later)
	require.NoError(t, err)
	assert.Equal(t, task, same)

	_, err = task.UpdateDescription("x", later)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTask_ChangePriority(t *testing.T) {
	task := newTestTask(t, PriorityLow)
	later := testNow.Add(time.Minute)

	updated, err := task.ChangePriority(PriorityHigh, later)
	require.NoError(t, err)
	assert.True(t, updated.IsHighPriority())
	assert.Equal(t, later, updated.UpdatedAt())

	same, err := task.ChangePriority(PriorityLow, later)
	require.NoError(t, err)
	assert.Equal(t, task.UpdatedAt(), same.UpdatedAt())

	_, err = task.ChangePriority(Priority("nope"), later)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTask_Complete(t *testing.T) {
	task := newTestTask(t, PriorityLow)
	later := testNow.Add(2 * time.Hour)

	completed, err := task.Complete(later)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status())
	assert.False(t, completed.IsOpen())
	assert.Equal(t, later, completed.UpdatedAt())

	_, err = completed.Complete(later.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestTask_CompletedIsImmutable(t *testing.T) {
	task := newTestTask(t, PriorityLow)
	completed, err := task.Complete(testNow.Add(time.Hour))
	require.NoError(t, err)

	later := testNow.Add(2 * time.Hour)

	_, err = completed.UpdateDescription("Something else", later)
	assert.ErrorIs(t, err, ErrTaskImmutable)

	_, err = completed.UpdateDescription(completed.Description(), later)
	assert.ErrorIs(t, err, ErrTaskImmutable)

	_, err = completed.ChangePriority(PriorityHigh, later)
	assert.ErrorIs(t, err, ErrTaskImmutable)
}

func TestTask_UpdatedAtNeverMovesBackwards(t *testing.T) {
	task := newTestTask(t, PriorityLow)

	updated, err := task.UpdateDescription("Buy bread", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, testNow, updated.UpdatedAt())
	assert.False(t, updated.UpdatedAt().Before(updated.CreatedAt()))
}

func TestTask_EnsureOwnership(t *testing.T) {
	task := newTestTask(t, PriorityLow)

	assert.NoError(t, task.EnsureOwnership("u1"))

	err := task.EnsureOwnership("u2")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, ErrorKindAccessDenied, KindOf(err))
}

func TestTask_WasCreatedOn(t *testing.T) {
	offset := time.FixedZone("UTC+10", 10*60*60)
	// 2026-03-15 02:00 at UTC+10 is still 2026-03-14 in UTC.
	createdAt := time.Date(2026, time.March, 15, 2, 0, 0, 0, offset)
	task, err := NewTask("task-1", "u1", "Buy milk", PriorityLow, createdAt)
	require.NoError(t, err)

	assert.True(t, task.WasCreatedOn(Date{Year: 2026, Month: time.March, Day: 14}))
	assert.False(t, task.WasCreatedOn(Date{Year: 2026, Month: time.March, Day: 15}))
}

func TestParsePriorityAndStatus(t *testing.T) {
	p, err := ParsePriority(" high ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err := ParseStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("archived")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestKindOf(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrDuplicateDescription)
	assert.Equal(t, ErrorKindDuplicateDescription, KindOf(wrapped))
	assert.Equal(t, ErrorKindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "not_found", ErrorKindNotFound.String())
	assert.Equal(t, "unknown", ErrorKind(200).String())
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", d.String())
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), d.Start())

	_, err = ParseDate("14/03/2026")
	assert.Error(t, err)
}
