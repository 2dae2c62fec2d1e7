package ports

import "context"

type LotEventMessage struct {
	EventID    uint64 `json:"eventId"`
	LotID      string `json:"lotId"`
	Seq        int    `json:"seq"`
	Status     string `json:"status"`
	Actor      string `json:"actor"`
	Location   string `json:"location"`
	OccurredAt string `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, msg LotEventMessage) error
}
