package lots

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
)

// SubmitFeedback stores a consumer comment. The lot does not have to exist.
func (s *Service) SubmitFeedback(ctx context.Context, lotID string, text string) (lot.Feedback, error) {
	if err := s.ready(ctx); err != nil {
		return lot.Feedback{}, err
	}

	fb, err := lot.NewFeedback(uuid.NewString(), lotID, text, s.now())
	if err != nil {
		return lot.Feedback{}, err
	}
	if err := s.repo.InsertFeedback(ctx, fb); err != nil {
		return lot.Feedback{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.lots")),
		"feedback stored",
		slog.String("lot_id", fb.LotID),
		slog.String("feedback_id", fb.ID),
	)
	return fb, nil
}

func (s *Service) ListFeedback(ctx context.Context, lotID string) ([]lot.Feedback, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListFeedback(ctx, lotID)
}
