package kafka_middleware

import (
	"context"
	"resledger/pkg/kafka"
	"resledger/pkg/logger"
	"time"
)

// LoggingProducerMiddleware logs every publish with its outcome and duration.
func LoggingProducerMiddleware(log *logger.Logger, topic string) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		if err != nil {
			log.Error("Failed to publish booking event",
				"topic", topic,
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"duration", time.Since(start),
				"error", err,
			)
			return err
		}

		log.Debug("Booking event published",
			"topic", topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		)
		return nil
	}
}
