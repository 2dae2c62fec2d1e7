package ports

import (
	"context"
	"errors"

	"agritrace/internal/domain/lot"
)

var (
	ErrLotNotFound      = errors.New("lot not found")
	ErrLotExists        = errors.New("lot already exists")
	ErrVersionConflict  = errors.New("lot version conflict")
	ErrStoreUnavailable = errors.New("record store unavailable")
)

type LotFilter struct {
	FarmerID string
}

// LotEvent is one outbox row written next to a lot change. Seq is the
// 1-based index of the history entry the event describes.
type LotEvent struct {
	EventID     uint64
	LotID       string
	Seq         int
	Status      string
	Actor       string
	Location    string
	OccurredAt  string
	PayloadJSON string
	PublishedAt string
}

type LotEventCreate struct {
	LotID       string
	Seq         int
	Status      string
	Actor       string
	Location    string
	OccurredAt  string
	PayloadJSON string
}

type LotReadRepository interface {
	GetLot(ctx context.Context, lotID string) (lot.Lot, error)
	// ListLots returns every lot ordered by harvest date (newest first), then id.
	ListLots(ctx context.Context, filter LotFilter) ([]lot.Lot, error)
	ListFeedback(ctx context.Context, lotID string) ([]lot.Feedback, error)
	ListEventsAfter(ctx context.Context, afterEventID uint64, limit int) ([]LotEvent, error)
	// ListUnpublishedEvents returns events the relay has not marked yet, in
	// event id order. Rows committed late under a lower id are included.
	ListUnpublishedEvents(ctx context.Context, limit int) ([]LotEvent, error)
	ListLotEventsAfter(ctx context.Context, lotID string, afterEventID uint64) ([]LotEvent, error)
}

// LotRepository is the record store. Writes are atomic per row; ReplaceHistory
// and ReplaceCertificates are compare-and-swap on the lot version and return
// the new version.
type LotRepository interface {
	LotReadRepository
	InsertLot(ctx context.Context, l lot.Lot) (lot.Lot, error)
	ReplaceHistory(ctx context.Context, lotID string, expectedVersion uint64, history []lot.HistoryEvent, updatedAt string) (uint64, error)
	ReplaceCertificates(ctx context.Context, lotID string, expectedVersion uint64, certs []lot.Certificate, updatedAt string) (uint64, error)
	InsertFeedback(ctx context.Context, fb lot.Feedback) error
	AppendEvent(ctx context.Context, input LotEventCreate) (LotEvent, error)
	MarkEventPublished(ctx context.Context, eventID uint64, publishedAt string) error
}
