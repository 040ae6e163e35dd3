package models

import "time"

type TaskEventType string

const (
	TaskEventCreated   TaskEventType = "created"
	TaskEventCompleted TaskEventType = "completed"
	TaskEventDeleted   TaskEventType = "deleted"
)

type TaskEvent struct {
	Type       TaskEventType `json:"type"`
	TaskID     string        `json:"task_id"`
	UserID     string        `json:"user_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewTaskEvent(eventType TaskEventType, task Task, at time.Time) TaskEvent {
	return TaskEvent{
		Type:       eventType,
		TaskID:     task.ID(),
		UserID:     task.UserID(),
		OccurredAt: at.UTC(),
	}
}
