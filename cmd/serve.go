package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"agritrace/internal/bootstrap/config"
	"agritrace/internal/bootstrap/database"
	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API and public trace pages, and run the event relay",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cfg := deps.App.Config
		migrate, _ := cmd.Flags().GetBool("migrate")
		withRelay, _ := cmd.Flags().GetBool("relay")
		watch, _ := cmd.Flags().GetBool("watch-config")

		if migrate {
			if err := deps.App.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
		}

		handler, err := httpapi.NewHandler(httpapi.Deps{
			Lots:           deps.Lots,
			Sessions:       deps.Sessions,
			Metrics:        deps.Metrics,
			MetricsHandler: deps.Metrics.Handler(),
			Health: func(ctx context.Context) error {
				return database.Ping(ctx, deps.App.DB)
			},
			StreamPoll: cfg.HTTP.StreamPoll,
		})
		if err != nil {
			return errs.Wrap(err, "build http handler")
		}

		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		group, groupCtx := errgroup.WithContext(runCtx)

		group.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "serve http")
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			logging.Info(ctx, "http server stopped")
			return nil
		})

		if withRelay {
			group.Go(func() error {
				return deps.Lots.RunRelay(groupCtx, cfg.Relay.Name, cfg.Relay.Interval, cfg.Relay.Batch)
			})
		}

		if watch {
			if _, err := os.Stat(cfgFile); err == nil {
				group.Go(func() error {
					return config.Watch(groupCtx, cfgFile, func(next config.Config) {
						if err := logging.SetLevel(next.Log.Level); err != nil {
							logging.Warn(ctx, "apply reloaded log level failed", slog.Any("err", errs.Loggable(err)))
							return
						}
						logging.Info(ctx, "log level applied", slog.String("level", logging.CurrentLevel().String()))
					})
				})
			}
		}

		return group.Wait()
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", true, "Run schema migration before serving")
	serveCmd.Flags().Bool("relay", true, "Run the outbox relay alongside the server")
	serveCmd.Flags().Bool("watch-config", true, "Reload log level when the config file changes")
}
