package lots

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

const (
	relayDefaultBatch    = 100
	relayDefaultInterval = 2 * time.Second
	relayDefaultName     = "default"
)

type RelayResult struct {
	CursorBefore uint64
	CursorAfter  uint64
	Published    int
	Anchored     int
}

// RelayOnce forwards unpublished outbox events in event id order. A row is
// marked published only after the broker accepts it, so a crash re-sends at
// most one event. Rows that commit late under a lower id are still picked up
// because selection never skips past an id. The stored cursor records the
// last id this relay published and is informational. Anchoring is best effort.
func (s *Service) RelayOnce(ctx context.Context, name string, batch int) (RelayResult, error) {
	if err := s.ready(ctx); err != nil {
		return RelayResult{}, err
	}
	if s.cache == nil {
		return RelayResult{}, errors.New("cache is required")
	}
	if s.publisher == nil {
		return RelayResult{}, errors.New("event publisher is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = relayDefaultName
	}
	if batch <= 0 {
		batch = relayDefaultBatch
	}

	cursorKey := cacheRelayCursorKey(name)
	cursorBefore, err := s.getUintCache(ctx, cursorKey)
	if err != nil {
		return RelayResult{}, err
	}
	result := RelayResult{CursorBefore: cursorBefore, CursorAfter: cursorBefore}

	events, err := s.repo.ListUnpublishedEvents(ctx, batch)
	if err != nil {
		return RelayResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.lots.relay"),
		slog.String("relay", name),
	)
	defer func() {
		if result.Published > 0 {
			s.metrics.ObserveRelayPublished(result.Published)
		}
	}()

	for _, event := range events {
		if err := s.publisher.Publish(ctx, toEventMessage(event)); err != nil {
			return result, errs.Wrapf(err, "publish event %d", event.EventID)
		}
		if err := s.repo.MarkEventPublished(ctx, event.EventID, s.nowUTCString()); err != nil {
			return result, errs.Wrapf(err, "mark event %d published", event.EventID)
		}
		if err := s.cache.Set(ctx, cursorKey, strconv.FormatUint(event.EventID, 10), 0); err != nil {
			return result, errs.Wrap(err, "save relay cursor")
		}
		result.CursorAfter = event.EventID
		result.Published++

		if s.anchor(logCtx, event) {
			result.Anchored++
		}
	}

	if result.Published > 0 {
		logging.Info(logCtx, "relay batch published",
			slog.Int("published", result.Published),
			slog.Int("anchored", result.Anchored),
			slog.Uint64("cursor", result.CursorAfter),
		)
	}
	return result, nil
}

// RunRelay polls until ctx is done. Batch errors are logged and retried on
// the next tick.
func (s *Service) RunRelay(ctx context.Context, name string, interval time.Duration, batch int) error {
	if interval <= 0 {
		interval = relayDefaultInterval
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.lots.relay"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for {
			result, err := s.RelayOnce(ctx, name, batch)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.Warn(logCtx, "relay batch failed", slog.Any("err", errs.Loggable(err)))
				break
			}
			// a full batch usually means more is waiting
			if batch <= 0 || result.Published < batch {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) anchor(ctx context.Context, event ports.LotEvent) bool {
	if s.ledger == nil {
		return false
	}
	receipt, err := s.ledger.Anchor(ctx, ports.AnchorRequest{
		LotID:  event.LotID,
		Seq:    event.Seq,
		Status: event.Status,
	})
	if err != nil {
		logging.Warn(ctx, "ledger anchor failed",
			slog.String("lot_id", event.LotID),
			slog.Int("seq", event.Seq),
			slog.Any("err", errs.Loggable(err)),
		)
		return false
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		return false
	}
	s.setCacheBestEffort(ctx, cacheAnchorKey(event.LotID, event.Seq), string(raw))
	return true
}

func (s *Service) getUintCache(ctx context.Context, key string) (uint64, error) {
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errs.Wrapf(err, "parse cache value %s", key)
	}
	return parsed, nil
}

func toEventMessage(event ports.LotEvent) ports.LotEventMessage {
	return ports.LotEventMessage{
		EventID:    event.EventID,
		LotID:      event.LotID,
		Seq:        event.Seq,
		Status:     event.Status,
		Actor:      event.Actor,
		Location:   event.Location,
		OccurredAt: event.OccurredAt,
	}
}
