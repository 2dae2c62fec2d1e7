package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the transport; tests point it at a fake.
	HTTPClient *http.Client
}

// GeminiGenerator asks Gemini for plain text and strips any code fence.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	prompts *PromptBook
}

var _ ports.ContractGenerator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, prompts *PromptBook) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai.api_key is required for the gemini provider")
	}
	if prompts == nil {
		return nil, errors.New("prompt book is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errs.Wrap(err, "create genai client")
	}

	return &GeminiGenerator{client: client, model: model, prompts: prompts}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, input ports.ContractPrompt) (ports.ContractDraft, error) {
	prompt, err := g.prompts.Render(ProfileSmartContract, input)
	if err != nil {
		return ports.ContractDraft{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "ai.gemini"), slog.String("model", g.model))

	var cfg *genai.GenerateContentConfig
	if prompt.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), cfg)
	if err != nil {
		logging.Warn(logCtx, "contract generation request failed", slog.Any("err", errs.Loggable(err)))
		return ports.ContractDraft{}, errs.Wrap(err, "gemini generate content")
	}

	code := StripCodeFence(resp.Text())
	if code == "" {
		return ports.ContractDraft{}, ports.ErrEmptyGeneration
	}

	logging.Info(logCtx, "contract draft generated", slog.Int("bytes", len(code)))
	return ports.ContractDraft{SmartContractCode: code}, nil
}
