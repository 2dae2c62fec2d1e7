package ports

import (
	"context"
	"errors"
)

var ErrEmptyGeneration = errors.New("generator returned no contract code")

type ContractPrompt struct {
	ProduceDetails       string
	TrackingRequirements string
}

type ContractDraft struct {
	SmartContractCode string `json:"smartContractCode" jsonschema:"description=Complete Solidity source for the traceability contract"`
}

// ContractGenerator drafts smart-contract source from free text. It is
// stateless; upstream failures are returned unchanged.
type ContractGenerator interface {
	Generate(ctx context.Context, prompt ContractPrompt) (ContractDraft, error)
	Name() string
}
