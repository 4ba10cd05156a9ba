package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to a zap logger. It is the default when no
// brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a publisher logging at info level.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, events ...Event) error {
	for _, evt := range events {
		p.logger.Info("domain event",
			zap.String("type", evt.Type),
			zap.String("key", evt.Key),
			zap.Time("occurred_at", evt.OccurredAt),
			zap.Any("payload", evt.Payload),
		)
	}
	return nil
}
