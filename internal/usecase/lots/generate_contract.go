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

// MaxContractInput bounds each free-text field sent to the generator.
const MaxContractInput = 8 << 10

type GenerateContractInput struct {
	ProduceDetails       string
	TrackingRequirements string
}

// GenerateContract drafts Solidity for admins. Upstream errors are returned
// as-is; nothing is stored.
func (s *Service) GenerateContract(ctx context.Context, actor ports.Actor, input GenerateContractInput) (ports.ContractDraft, error) {
	if ctx == nil {
		return ports.ContractDraft{}, fmt.Errorf("context is required")
	}
	if actor.Role != lot.RoleAdmin {
		return ports.ContractDraft{}, fmt.Errorf("%w: contract generation is admin only", lot.ErrUnauthorizedRole)
	}

	prompt := ports.ContractPrompt{
		ProduceDetails:       strings.TrimSpace(input.ProduceDetails),
		TrackingRequirements: strings.TrimSpace(input.TrackingRequirements),
	}
	verr := &lot.ValidationError{}
	checkContractField(verr, "produceDetails", prompt.ProduceDetails)
	checkContractField(verr, "trackingRequirements", prompt.TrackingRequirements)
	if len(verr.Fields) > 0 {
		return ports.ContractDraft{}, verr
	}

	if s.generator == nil {
		return ports.ContractDraft{}, ErrGeneratorDisabled
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.lots"),
		slog.String("provider", s.generator.Name()),
	)
	draft, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logging.Error(logCtx, "contract generation failed", slog.Any("err", errs.Loggable(err)))
		return ports.ContractDraft{}, err
	}
	return draft, nil
}

func checkContractField(verr *lot.ValidationError, field string, value string) {
	switch {
	case value == "":
		verr.Fields = append(verr.Fields, lot.FieldError{Field: field, Message: "is required"})
	case len(value) > MaxContractInput:
		verr.Fields = append(verr.Fields, lot.FieldError{Field: field, Message: "is too long"})
	}
}
