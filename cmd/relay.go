package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish committed lot events and anchor them on the ledger",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cfg := deps.App.Config.Relay
		once, _ := cmd.Flags().GetBool("once")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = cfg.Name
		}
		batch, _ := cmd.Flags().GetInt("batch")
		if batch <= 0 {
			batch = cfg.Batch
		}

		if once {
			result, err := deps.Lots.RelayOnce(ctx, name, batch)
			if err != nil {
				return errs.Wrap(err, "relay once")
			}
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"relay name=%s cursor=%d->%d published=%d anchored=%d\n",
				name,
				result.CursorBefore,
				result.CursorAfter,
				result.Published,
				result.Anchored,
			); err != nil {
				return errs.Wrap(err, "write relay output")
			}
			return nil
		}

		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return deps.Lots.RunRelay(runCtx, name, cfg.Interval, batch)
	}),
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().Bool("once", false, "Relay one batch and exit")
	relayCmd.Flags().String("name", "", "Relay cursor name (default: relay.name from config)")
	relayCmd.Flags().Int("batch", 0, "Max events per batch (default: relay.batch from config)")
}
