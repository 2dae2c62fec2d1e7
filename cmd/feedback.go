package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Consumer feedback on lots",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <lot-id> <text>",
	Short: "Record consumer feedback for a lot",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		args := cmd.Flags().Args()
		fb, err := deps.Lots.SubmitFeedback(ctx, args[0], args[1])
		if err != nil {
			return errs.Wrap(err, "submit feedback")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "feedback recorded: %s lot=%s\n", fb.ID, fb.LotID); err != nil {
			return errs.Wrap(err, "write feedback output")
		}
		return nil
	}),
}

var feedbackListCmd = &cobra.Command{
	Use:   "list <lot-id>",
	Short: "List feedback for a lot, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		items, err := deps.Lots.ListFeedback(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "list feedback")
		}
		out := cmd.OutOrStdout()
		if len(items) == 0 {
			_, err := fmt.Fprintln(out, "no feedback")
			return err
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(out, "%s\t%s\n", item.CreatedAt, item.Text); err != nil {
				return errs.Wrap(err, "write feedback output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackAddCmd, feedbackListCmd)
}
