package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	AI       AIConfig       `mapstructure:"ai"`
	Blob     BlobConfig     `mapstructure:"blob"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr          string        `mapstructure:"addr"`
	SessionSecret string        `mapstructure:"session_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	// StreamPoll is how often the trace websocket checks for new events.
	StreamPoll    time.Duration `mapstructure:"stream_poll"`
}

type AIConfig struct {
	Provider    string `mapstructure:"provider"`
	Model       string `mapstructure:"model"`
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	PromptsFile string `mapstructure:"prompts_file"`
}

type BlobConfig struct {
	Driver string       `mapstructure:"driver"`
	Root   string       `mapstructure:"root"`
	S3     BlobS3Config `mapstructure:"s3"`
}

type BlobS3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type RelayConfig struct {
	Name     string        `mapstructure:"name"`
	Interval time.Duration `mapstructure:"interval"`
	Batch    int           `mapstructure:"batch"`
}

type LedgerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ConfirmationDelay time.Duration `mapstructure:"confirmation_delay"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("ai_provider", cfg.AI.Provider),
		slog.String("blob_driver", cfg.Blob.Driver),
	)

	return cfg, nil
}

// Validate checks the settings that would otherwise fail late, at first use.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errs.Wrap(err, "log.level")
	}
	switch strings.ToLower(c.AI.Provider) {
	case "", "none", "openai", "gemini":
	default:
		return fmt.Errorf("ai.provider %q is not one of openai, gemini, none", c.AI.Provider)
	}
	switch strings.ToLower(c.Blob.Driver) {
	case "fs":
	case "s3":
		if strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver %q is not one of fs, s3", c.Blob.Driver)
	}
	if c.Relay.Batch < 0 {
		return errors.New("relay.batch must be >= 0")
	}
	return nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "agritrace")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/agritrace.sqlite")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.session_secret", "change-me-agritrace-dev-secret")
	v.SetDefault("http.token_ttl", "12h")
	v.SetDefault("http.public_base_url", "http://localhost:8080")
	v.SetDefault("http.stream_poll", "1s")
	v.SetDefault("ai.provider", "none")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.prompts_file", "")
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.root", "data/blobs")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "agritrace")
	v.SetDefault("relay.name", "default")
	v.SetDefault("relay.interval", "2s")
	v.SetDefault("relay.batch", 100)
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.confirmation_delay", "1500ms")
}
