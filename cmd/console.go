package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/usecase/dashboardconsole"
	"agritrace/internal/usecase/traceconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the role dashboard console",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := dashboardconsole.NewDashboardModel(ctx, deps.Lots, dashboardconsole.Options{
			Actor:           actor,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run dashboard console")
		}
		return nil
	}),
}

var consoleTraceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Browse lots with their journey, feedback and ledger anchors",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		statuses, _ := cmd.Flags().GetStringSlice("status")
		farmer, _ := cmd.Flags().GetString("farmer")
		relayName, _ := cmd.Flags().GetString("relay-name")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := traceconsole.NewTraceModel(ctx, deps.Lots, traceconsole.Options{
			StatusFilter:    statuses,
			FarmerID:        farmer,
			RelayName:       relayName,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run trace console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleDashboardCmd, consoleTraceCmd)

	addActorFlags(consoleDashboardCmd, "Distributor")
	consoleDashboardCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")

	consoleTraceCmd.Flags().StringSlice("status", nil, "Status filter, repeatable (name or slug)")
	consoleTraceCmd.Flags().String("farmer", "", "Farmer actor id filter")
	consoleTraceCmd.Flags().String("relay-name", "console", "Relay cursor used by the r key")
	consoleTraceCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
