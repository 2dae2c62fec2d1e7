package lots

import (
	"context"
	"encoding/json"
	"sort"

	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// TraceView is the public, consumer-facing picture of a lot.
type TraceView struct {
	Lot      lot.Lot
	Status   lot.Status
	Feedback []lot.Feedback
	Anchors  []ports.AnchorReceipt
	// LastEventID lets stream clients ask only for newer events.
	LastEventID uint64
}

func (s *Service) Trace(ctx context.Context, lotID string) (TraceView, error) {
	l, err := s.GetLot(ctx, lotID)
	if err != nil {
		return TraceView{}, err
	}
	status, err := lot.CurrentStatus(l)
	if err != nil {
		return TraceView{}, err
	}

	feedback, err := s.repo.ListFeedback(ctx, l.ID)
	if err != nil {
		return TraceView{}, err
	}
	anchors, err := s.anchors(ctx, l.ID)
	if err != nil {
		return TraceView{}, err
	}
	events, err := s.repo.ListLotEventsAfter(ctx, l.ID, 0)
	if err != nil {
		return TraceView{}, err
	}

	view := TraceView{Lot: l, Status: status, Feedback: feedback, Anchors: anchors}
	if len(events) > 0 {
		view.LastEventID = events[len(events)-1].EventID
	}
	return view, nil
}

// LotEventsAfter lists outbox events of one lot newer than afterEventID.
func (s *Service) LotEventsAfter(ctx context.Context, lotID string, afterEventID uint64) ([]ports.LotEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListLotEventsAfter(ctx, lotID, afterEventID)
}

func (s *Service) anchors(ctx context.Context, lotID string) ([]ports.AnchorReceipt, error) {
	if s.cache == nil {
		return nil, nil
	}
	raw, err := s.cache.ListPrefix(ctx, cacheAnchorPrefix(lotID))
	if err != nil {
		return nil, errs.Wrap(err, "list anchors")
	}

	receipts := make([]ports.AnchorReceipt, 0, len(raw))
	for _, value := range raw {
		var receipt ports.AnchorReceipt
		if err := json.Unmarshal([]byte(value), &receipt); err != nil {
			continue
		}
		receipts = append(receipts, receipt)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].Seq < receipts[j].Seq })
	return receipts, nil
}
