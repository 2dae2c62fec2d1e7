package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGenerator asks a chat-completions endpoint for a strict JSON reply
// shaped like ports.ContractDraft.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	prompts *PromptBook
	schema  map[string]any
}

var _ ports.ContractGenerator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(cfg OpenAIConfig, prompts *PromptBook) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai.api_key is required for the openai provider")
	}
	if prompts == nil {
		return nil, errors.New("prompt book is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	schema, err := draftSchema()
	if err != nil {
		return nil, err
	}

	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		prompts: prompts,
		schema:  schema,
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, input ports.ContractPrompt) (ports.ContractDraft, error) {
	prompt, err := g.prompts.Render(ProfileSmartContract, input)
	if err != nil {
		return ports.ContractDraft{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "ai.openai"), slog.String("model", g.model))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "contract_draft",
					Description: openai.String("Solidity source for a produce traceability contract"),
					Schema:      g.schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		logging.Warn(logCtx, "contract generation request failed", slog.Any("err", errs.Loggable(err)))
		return ports.ContractDraft{}, errs.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return ports.ContractDraft{}, ports.ErrEmptyGeneration
	}

	var draft ports.ContractDraft
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &draft); err != nil {
		return ports.ContractDraft{}, errs.Wrap(err, "decode structured reply")
	}
	draft.SmartContractCode = StripCodeFence(draft.SmartContractCode)
	if draft.SmartContractCode == "" {
		return ports.ContractDraft{}, ports.ErrEmptyGeneration
	}

	logging.Info(logCtx, "contract draft generated", slog.Int("bytes", len(draft.SmartContractCode)))
	return draft, nil
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(&ports.ContractDraft{}))
	if err != nil {
		return nil, errs.Wrap(err, "encode contract schema")
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, errs.Wrap(err, "decode contract schema")
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema, nil
}
