package cmd

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/usecase/lots"
)

var lotAttachCmd = &cobra.Command{
	Use:   "attach <lot-id> <file>",
	Short: "Attach a certificate document to a lot",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		args := cmd.Flags().Args()
		path := args[1]
		name, _ := cmd.Flags().GetString("as")
		if name == "" {
			name = filepath.Base(path)
		}
		contentType, _ := cmd.Flags().GetString("content-type")
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(path))
		}

		file, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open certificate %s", path)
		}
		defer file.Close()

		cert, err := deps.Lots.AttachCertificate(ctx, actor, lots.AttachCertificateInput{
			LotID:       args[0],
			Name:        name,
			ContentType: contentType,
			Body:        file,
		})
		if err != nil {
			logging.Error(ctx, "attach certificate failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "attach certificate")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "certificate attached: %s size=%d\n", cert.Key, cert.Size); err != nil {
			return errs.Wrap(err, "write attach output")
		}
		return nil
	}),
}

func init() {
	lotCmd.AddCommand(lotAttachCmd)
	addActorFlags(lotAttachCmd, "Farmer")
	lotAttachCmd.Flags().String("as", "", "Certificate name (default: file name)")
	lotAttachCmd.Flags().String("content-type", "", "Content type (default: from file extension)")
}
