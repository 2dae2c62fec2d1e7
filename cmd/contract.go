package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/usecase/lots"
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Smart-contract drafting",
}

var contractGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a traceability contract with the configured AI provider",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		produce, _ := cmd.Flags().GetString("produce")
		tracking, _ := cmd.Flags().GetString("tracking")
		outFile, _ := cmd.Flags().GetString("out")

		draft, err := deps.Lots.GenerateContract(ctx, actor, lots.GenerateContractInput{
			ProduceDetails:       produce,
			TrackingRequirements: tracking,
		})
		if err != nil {
			logging.Error(ctx, "generate contract failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "generate contract")
		}

		if outFile == "" {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), draft.SmartContractCode); err != nil {
				return errs.Wrap(err, "write contract output")
			}
			return nil
		}
		if err := os.WriteFile(outFile, []byte(draft.SmartContractCode), 0o644); err != nil {
			return errs.Wrapf(err, "write contract to %s", outFile)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "contract written: %s\n", outFile); err != nil {
			return errs.Wrap(err, "write contract output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(contractCmd)
	contractCmd.AddCommand(contractGenerateCmd)

	addActorFlags(contractGenerateCmd, "Admin")
	contractGenerateCmd.Flags().String("produce", "", "Produce details")
	contractGenerateCmd.Flags().String("tracking", "", "Tracking requirements")
	contractGenerateCmd.Flags().String("out", "", "Write the contract source to this file")
}
