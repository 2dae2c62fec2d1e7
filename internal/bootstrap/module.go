package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"agritrace/internal/bootstrap/config"
	"agritrace/internal/bootstrap/database"
	"agritrace/internal/bootstrap/logging"
	cacheinfra "agritrace/internal/infrastructure/cache"
	"agritrace/internal/infrastructure/metrics"
	sqliterepo "agritrace/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "agritrace/internal/infrastructure/persistence/sqlite/uow"
	"agritrace/internal/infrastructure/session"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewLotRepository,
			fx.As(new(ports.LotRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(metrics.NewPrometheus),
	fx.Provide(func(p *metrics.Prometheus) ports.MetricsRecorder { return p }),
	fx.Provide(provideSessionIssuer),
	fx.Provide(provideBlobStore),
	fx.Provide(provideGenerator),
	fx.Provide(provideEventPublisher),
	fx.Provide(provideLedger),
	fx.Provide(provideLotService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	cfg, err := config.Load(ctx, p.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideSessionIssuer(cfg config.Config) (ports.SessionIssuer, error) {
	return session.NewJWTIssuer(cfg.HTTP.SessionSecret, cfg.HTTP.TokenTTL)
}

type lotServiceParams struct {
	fx.In

	Repo      ports.LotRepository
	UoW       ports.UnitOfWork
	Cache     ports.Cache
	Blobs     ports.BlobStore
	Generator ports.ContractGenerator
	Publisher ports.EventPublisher
	Ledger    ports.Ledger
	Metrics   ports.MetricsRecorder
}

func provideLotService(p lotServiceParams) *lots.Service {
	return lots.NewService(p.Repo, p.UoW, p.Cache,
		lots.WithBlobStore(p.Blobs),
		lots.WithGenerator(p.Generator),
		lots.WithPublisher(p.Publisher),
		lots.WithLedger(p.Ledger),
		lots.WithMetrics(p.Metrics),
	)
}
