package lots

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

type RegisterLotInput struct {
	// ID is optional; the service assigns LOT-XXXXXXXX when empty.
	ID           string
	ProduceName  string
	Origin       string
	PlantingDate string
	HarvestDate  string
	ItemCount    int
}

// RegisterLot creates a lot for the signed-in farmer. The lot row and its
// first outbox event are written in one transaction.
func (s *Service) RegisterLot(ctx context.Context, actor ports.Actor, input RegisterLotInput) (lot.Lot, error) {
	if err := s.ready(ctx); err != nil {
		return lot.Lot{}, err
	}
	if actor.Role != lot.RoleFarmer {
		s.metrics.ObserveTransition(string(lot.StatusRegistered), "unauthorized_role")
		return lot.Lot{}, fmt.Errorf("%w: role %q cannot register lots", lot.ErrUnauthorizedRole, actor.Role)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = s.newLotID()
	}

	created, err := lot.Register(id, lot.FarmerRef{ID: actor.ID, Name: actor.DisplayName}, lot.Metadata{
		ProduceName:  input.ProduceName,
		Origin:       input.Origin,
		PlantingDate: input.PlantingDate,
		HarvestDate:  input.HarvestDate,
		ItemCount:    input.ItemCount,
	}, s.now())
	if err != nil {
		s.metrics.ObserveTransition(string(lot.StatusRegistered), transitionResult(err))
		return lot.Lot{}, err
	}

	var stored lot.Lot
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		row, err := s.repo.InsertLot(txCtx, created)
		if err != nil {
			return err
		}
		if err := appendHistoryEventTx(txCtx, s.repo, row.ID, row.History, len(row.History)); err != nil {
			return err
		}
		stored = row
		return nil
	})
	s.metrics.ObserveTransition(string(lot.StatusRegistered), transitionResult(err))
	if err != nil {
		return lot.Lot{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.lots")),
		"lot registered",
		slog.String("lot_id", stored.ID),
		slog.String("farmer_id", stored.Farmer.ID),
	)
	return stored, nil
}

// appendHistoryEventTx writes the outbox row for history[seq-1].
func appendHistoryEventTx(ctx context.Context, repo ports.LotRepository, lotID string, history []lot.HistoryEvent, seq int) error {
	event := history[seq-1]
	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode history event")
	}
	_, err = repo.AppendEvent(ctx, ports.LotEventCreate{
		LotID:       lotID,
		Seq:         seq,
		Status:      string(event.Status),
		Actor:       event.Actor,
		Location:    event.Location,
		OccurredAt:  event.Timestamp,
		PayloadJSON: string(payload),
	})
	return err
}
