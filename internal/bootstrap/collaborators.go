package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"agritrace/internal/bootstrap/config"
	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/infrastructure/ai"
	fsblob "agritrace/internal/infrastructure/blob/fs"
	s3blob "agritrace/internal/infrastructure/blob/s3"
	"agritrace/internal/infrastructure/ledger"
	"agritrace/internal/infrastructure/messaging"
	"agritrace/internal/ports"
)

func provideBlobStore(ctx context.Context, cfg config.Config) (ports.BlobStore, error) {
	switch strings.ToLower(cfg.Blob.Driver) {
	case string(ports.BlobDriverS3):
		return s3blob.New(ctx, s3blob.Config{
			Bucket:          cfg.Blob.S3.Bucket,
			Region:          cfg.Blob.S3.Region,
			Endpoint:        cfg.Blob.S3.Endpoint,
			PathStyle:       cfg.Blob.S3.PathStyle,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
		})
	case "", string(ports.BlobDriverFilesystem):
		return fsblob.New(cfg.Blob.Root)
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Blob.Driver)
	}
}

// provideGenerator returns a nil generator for provider "none"; the lot
// service then answers contract requests with ErrGeneratorDisabled.
func provideGenerator(ctx context.Context, cfg config.Config) (ports.ContractGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if provider == "" || provider == "none" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return nil, fmt.Errorf("ai.api_key is required for provider %q", provider)
	}

	prompts, err := ai.LoadPromptBook(cfg.AI.PromptsFile)
	if err != nil {
		return nil, errs.Wrap(err, "load prompts")
	}

	switch provider {
	case "openai":
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		}, prompts)
	case "gemini":
		return ai.NewGeminiGenerator(ctx, ai.GeminiConfig{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		}, prompts)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
}

// provideEventPublisher connects to NATS when enabled and falls back to
// logging each relayed event otherwise.
func provideEventPublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.EventPublisher, error) {
	if !cfg.NATS.Enabled {
		return messaging.LogPublisher{}, nil
	}

	publisher, drain, err := messaging.Dial(ctx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			if err := drain(); err != nil {
				logging.Warn(
					logging.WithAttrs(stopCtx, slog.String("component", "bootstrap.fx")),
					"nats drain failed",
					slog.Any("err", errs.Loggable(err)),
				)
				return err
			}
			return nil
		},
	})
	return publisher, nil
}

func provideLedger(cfg config.Config) (ports.Ledger, error) {
	if !cfg.Ledger.Enabled {
		return nil, nil
	}
	if cfg.Ledger.ConfirmationDelay < 0 {
		return nil, errors.New("ledger.confirmation_delay must be >= 0")
	}
	return ledger.NewSimulated(cfg.Ledger.ConfirmationDelay), nil
}
