package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/usecase/lots"
)

var lotCmd = &cobra.Command{
	Use:   "lot",
	Short: "Register, advance and inspect produce lots",
}

var lotRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new lot as a farmer",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		produce, _ := cmd.Flags().GetString("produce")
		origin, _ := cmd.Flags().GetString("origin")
		planted, _ := cmd.Flags().GetString("planted")
		harvested, _ := cmd.Flags().GetString("harvested")
		items, _ := cmd.Flags().GetInt("items")

		created, err := deps.Lots.RegisterLot(ctx, actor, lots.RegisterLotInput{
			ID:           id,
			ProduceName:  produce,
			Origin:       origin,
			PlantingDate: planted,
			HarvestDate:  harvested,
			ItemCount:    items,
		})
		if err != nil {
			logging.Error(ctx, "register lot failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "register lot")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "registered lot: %s\n", created.ID); err != nil {
			return errs.Wrap(err, "write register output")
		}
		return nil
	}),
}

var lotAdvanceCmd = &cobra.Command{
	Use:   "advance <lot-id> <status>",
	Short: "Move a lot to its next custody status",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		location, _ := cmd.Flags().GetString("location")
		args := cmd.Flags().Args()

		updated, err := deps.Lots.AdvanceLot(ctx, actor, lots.AdvanceLotInput{
			LotID:    args[0],
			Status:   args[1],
			Location: location,
		})
		if err != nil {
			logging.Error(ctx, "advance lot failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "advance lot")
		}

		status, _ := lot.CurrentStatus(updated)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "lot %s is now %s\n", updated.ID, status); err != nil {
			return errs.Wrap(err, "write advance output")
		}
		return nil
	}),
}

var lotShowCmd = &cobra.Command{
	Use:   "show <lot-id>",
	Short: "Print a lot and its custody history",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		view, err := deps.Lots.Trace(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "load lot")
		}
		return writeTrace(cmd.OutOrStdout(), view)
	}),
}

var lotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lots by current status and farmer",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		statuses, _ := cmd.Flags().GetStringSlice("status")
		farmer, _ := cmd.Flags().GetString("farmer")

		found, err := deps.Lots.QueryLots(ctx, lots.LotQuery{Statuses: statuses, FarmerID: farmer})
		if err != nil {
			return errs.Wrap(err, "list lots")
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			_, err := fmt.Fprintln(out, "no lots")
			return err
		}
		for _, item := range found {
			status, _ := lot.CurrentStatus(item)
			if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\n", item.ID, status, item.ProduceName, item.ItemCount, item.Farmer.Name); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

var lotImportCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Load lots, custody steps and feedback from a seed file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path := cmd.Flags().Arg(0)
		file, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open seed file %s", path)
		}
		defer file.Close()

		seed, err := lots.ParseSeed(file)
		if err != nil {
			return errs.Wrapf(err, "parse seed file %s", path)
		}
		result, err := deps.Lots.ImportSeed(ctx, seed)
		if err != nil {
			logging.Error(ctx, "seed import failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import seed")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"seed import created=%d skipped=%d advanced=%d feedback=%d\n",
			result.Created,
			result.Skipped,
			result.Advanced,
			result.Feedback,
		); err != nil {
			return errs.Wrap(err, "write import output")
		}
		return nil
	}),
}

func writeTrace(out io.Writer, view lots.TraceView) error {
	var builder strings.Builder
	l := view.Lot
	fmt.Fprintf(&builder, "lot:       %s\n", l.ID)
	fmt.Fprintf(&builder, "produce:   %s (%d items)\n", l.ProduceName, l.ItemCount)
	fmt.Fprintf(&builder, "origin:    %s\n", l.Origin)
	fmt.Fprintf(&builder, "farmer:    %s\n", l.Farmer.Name)
	fmt.Fprintf(&builder, "planted:   %s\n", l.PlantingDate)
	fmt.Fprintf(&builder, "harvested: %s\n", l.HarvestDate)
	fmt.Fprintf(&builder, "status:    %s\n", view.Status)
	builder.WriteString("history:\n")
	for index, event := range l.History {
		fmt.Fprintf(&builder, "  %d. %s  %s  at %s by %s\n", index+1, event.Timestamp, event.Status, event.Location, event.Actor)
	}
	if len(l.Certificates) > 0 {
		builder.WriteString("certificates:\n")
		for _, cert := range l.Certificates {
			fmt.Fprintf(&builder, "  - %s (%s)\n", cert.Name, cert.ContentType)
		}
	}
	if len(view.Anchors) > 0 {
		builder.WriteString("ledger:\n")
		for _, receipt := range view.Anchors {
			fmt.Fprintf(&builder, "  - seq=%d tx=%s\n", receipt.Seq, receipt.TxID)
		}
	}

	_, err := io.WriteString(out, builder.String())
	return err
}

func init() {
	rootCmd.AddCommand(lotCmd)
	lotCmd.AddCommand(lotRegisterCmd, lotAdvanceCmd, lotShowCmd, lotListCmd, lotImportCmd)

	addActorFlags(lotRegisterCmd, "Farmer")
	lotRegisterCmd.Flags().String("id", "", "Lot id (default: generated LOT-XXXXXXXX)")
	lotRegisterCmd.Flags().String("produce", "", "Produce name")
	lotRegisterCmd.Flags().String("origin", "", "Farm or region of origin")
	lotRegisterCmd.Flags().String("planted", "", "Planting date (YYYY-MM-DD)")
	lotRegisterCmd.Flags().String("harvested", "", "Harvest date (YYYY-MM-DD)")
	lotRegisterCmd.Flags().Int("items", 0, "Number of items in the lot")
	_ = lotRegisterCmd.MarkFlagRequired("produce")

	addActorFlags(lotAdvanceCmd, "")
	lotAdvanceCmd.Flags().String("location", "", "Where the custody change happened")

	lotListCmd.Flags().StringSlice("status", nil, "Status filter, repeatable (name or slug)")
	lotListCmd.Flags().String("farmer", "", "Farmer actor id filter")
}
