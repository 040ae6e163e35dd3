package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adanyl0v/go-tasks/internal/models"
)

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator generates time-ordered UUIDv7 identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return id.String(), nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.TaskEvent) error {
	return nil
}
