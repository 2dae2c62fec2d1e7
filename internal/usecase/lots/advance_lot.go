package lots

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

type AdvanceLotInput struct {
	LotID string
	// Status is the requested next status, canonical name or slug.
	Status   string
	Location string
}

// AdvanceLot appends one custody event. Read, validation, history replace and
// outbox row share a transaction, and the history replace is
// version-checked, so a concurrent writer makes this call fail with
// ports.ErrVersionConflict instead of overwriting its event.
func (s *Service) AdvanceLot(ctx context.Context, actor ports.Actor, input AdvanceLotInput) (lot.Lot, error) {
	if err := s.ready(ctx); err != nil {
		return lot.Lot{}, err
	}

	lotID := strings.TrimSpace(input.LotID)
	if lotID == "" {
		return lot.Lot{}, fieldError("lotId", "is required")
	}

	requested, err := lot.ParseStatus(input.Status)
	if err != nil {
		s.metrics.ObserveTransition(strings.TrimSpace(input.Status), "invalid_transition")
		return lot.Lot{}, fmt.Errorf("%w: %w", lot.ErrInvalidTransition, err)
	}

	actorName := strings.TrimSpace(actor.DisplayName)
	if actorName == "" {
		actorName = actor.ID
	}

	var updated lot.Lot
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetLot(txCtx, lotID)
		if err != nil {
			return err
		}

		history, err := lot.Advance(current, lot.AdvanceRequest{
			Requested: requested,
			Actor:     actorName,
			Role:      actor.Role,
			Location:  input.Location,
			At:        s.now(),
		})
		if err != nil {
			return err
		}

		updatedAt := s.nowUTCString()
		version, err := s.repo.ReplaceHistory(txCtx, lotID, current.Version, history, updatedAt)
		if err != nil {
			return err
		}
		if err := appendHistoryEventTx(txCtx, s.repo, lotID, history, len(history)); err != nil {
			return err
		}

		updated = current
		updated.History = history
		updated.Version = version
		updated.UpdatedAt = updatedAt
		return nil
	})
	s.metrics.ObserveTransition(string(requested), transitionResult(err))

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.lots"),
		slog.String("lot_id", lotID),
		slog.String("requested", string(requested)),
		slog.String("role", string(actor.Role)),
	)
	if err != nil {
		logging.Warn(logCtx, "lot advance rejected", slog.Any("err", errs.Loggable(err)))
		return lot.Lot{}, err
	}

	logging.Info(logCtx, "lot advanced", slog.Uint64("version", updated.Version))
	return updated, nil
}
