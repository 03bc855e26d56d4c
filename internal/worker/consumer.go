package worker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// startWakeConsumer subscribes to submission notifications. A notification
// only nudges idle claim loops to poll now instead of waiting out their
// interval; the job itself always comes from the database. Messages are
// acked unconditionally for the same reason - there is nothing to redeliver.
func (w *Worker) startWakeConsumer(ctx context.Context) error {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Wake consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetch),
	)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.consumeWakes(ctx, deliveries)
	}()

	return nil
}

func (w *Worker) consumeWakes(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed, wake notifications disabled")
				return
			}

			if err := delivery.Ack(false); err != nil {
				w.logger.Warn("Failed to ACK wake notification",
					slog.String("error", err.Error()),
				)
			}

			// Coalesce: one pending wake is enough for any number of
			// notifications.
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}
	}
}
