package messaging

import (
	"context"
	"log/slog"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/ports"
)

// LogPublisher writes lot events to the log. It stands in for NATS when
// nats.enabled is false.
type LogPublisher struct{}

var _ ports.EventPublisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, msg ports.LotEventMessage) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "messaging.log")),
		"lot event",
		slog.String("lot_id", msg.LotID),
		slog.Int("seq", msg.Seq),
		slog.String("status", msg.Status),
		slog.String("actor", msg.Actor),
	)
	return nil
}
