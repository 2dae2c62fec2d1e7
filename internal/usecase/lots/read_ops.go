package lots

import (
	"context"
	"strings"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

type LotQuery struct {
	// Statuses accepts canonical names or slugs; empty means any status.
	Statuses []string
	FarmerID string
}

func (s *Service) GetLot(ctx context.Context, lotID string) (lot.Lot, error) {
	if err := s.ready(ctx); err != nil {
		return lot.Lot{}, err
	}
	lotID = strings.TrimSpace(lotID)
	if lotID == "" {
		return lot.Lot{}, fieldError("lotId", "is required")
	}
	return s.repo.GetLot(ctx, lotID)
}

// QueryLots filters on the status computed from each lot's history, never on
// the cached status column.
func (s *Service) QueryLots(ctx context.Context, query LotQuery) ([]lot.Lot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	filter := lot.Filter{FarmerID: strings.TrimSpace(query.FarmerID)}
	for _, raw := range query.Statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, err := lot.ParseStatus(raw)
		if err != nil {
			return nil, fieldError("status", err.Error())
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	all, err := s.repo.ListLots(ctx, ports.LotFilter{FarmerID: filter.FarmerID})
	if err != nil {
		return nil, err
	}
	return lot.Query(all, filter), nil
}

// CurrentStatus reports the status of a stored lot from its history.
func (s *Service) CurrentStatus(ctx context.Context, lotID string) (lot.Status, error) {
	l, err := s.GetLot(ctx, lotID)
	if err != nil {
		return "", err
	}
	return lot.CurrentStatus(l)
}
