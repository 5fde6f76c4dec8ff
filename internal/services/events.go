package services

import (
	"context"
	"time"

	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/types"
)

const publishTimeout = 5 * time.Second

// EventPublisher is satisfied by *mq.MQ.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, event types.ProfileEvent) (string, error)
}

// publish sends a profile event after a committed mutation. Failures are
// logged and swallowed; the mutation already happened.
func publish(ctx context.Context, p EventPublisher, channel string, event types.ProfileEvent) {
	if p == nil {
		return
	}
	logger := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	id, err := p.PublishEvent(ctx, channel, event)
	if err != nil {
		logger.Warn("publish profile event", "type", event.Type, "user_id", event.UserID, "err", err)
		return
	}
	logger.Debug("profile event published", "type", event.Type, "message_id", id)
}
