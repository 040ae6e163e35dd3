// Package events publishes task lifecycle events on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/adanyl0v/go-tasks/internal/models"
)

const (
	DefaultSubjectPrefix = "tasks"

	// Lets JetStream streams bound to these subjects drop duplicates.
	msgIDHeader = "Nats-Msg-Id"
)

type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes every event as JSON on <prefix>.<type>,
// e.g. tasks.created.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Subject(eventType models.TaskEventType) string {
	return p.prefix + "." + string(eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, event models.TaskEvent) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(event.Type))
	msg.Data = data
	msg.Header.Set(msgIDHeader, event.TaskID+":"+string(event.Type))

	err = p.conn.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	return nil
}
