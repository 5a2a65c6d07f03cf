package mqtt

import (
	"context"
	"encoding/json"

	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/session"
)

// Topic suffixes appended to the configured prefix.
const (
	SessionsTopic   = "sessions"
	AttendanceTopic = "attendance"
)

// Publisher publishes session machine events as JSON.
type Publisher struct {
	client Client
	prefix string
	log    logger.Logger
}

var _ session.Publisher = (*Publisher)(nil)

// NewPublisher publishes through client under prefix.
func NewPublisher(client Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultConfig().Topic
	}
	return &Publisher{client: client, prefix: prefix, log: GetLogger()}
}

// PublishSession sends e to <prefix>/sessions.
func (p *Publisher) PublishSession(ctx context.Context, e session.SessionEvent) error {
	return p.publish(ctx, SessionsTopic, e)
}

// PublishAttendance sends e to <prefix>/attendance.
func (p *Publisher) PublishAttendance(ctx context.Context, e session.AttendanceEvent) error {
	return p.publish(ctx, AttendanceTopic, e)
}

func (p *Publisher) publish(ctx context.Context, suffix string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal").
			Build()
	}

	topic := p.prefix + "/" + suffix
	if err := p.client.Publish(ctx, topic, payload); err != nil {
		p.log.Warn("event not published", logger.String("topic", topic), logger.Error(err))
		return err
	}
	return nil
}
