package cmd

import (
	"github.com/spf13/cobra"

	"agritrace/internal/errs"
	"agritrace/internal/infrastructure/session"
	"agritrace/internal/ports"
)

func addActorFlags(cmd *cobra.Command, defaultRole string) {
	cmd.Flags().String("name", "", "Acting user display name")
	cmd.Flags().String("email", "", "Acting user email")
	cmd.Flags().String("wallet", "", "Acting user wallet address")
	cmd.Flags().String("role", defaultRole, "Acting role (Farmer|Distributor|Retailer|Admin)")
}

func actorFromFlags(cmd *cobra.Command) (ports.Actor, error) {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	wallet, _ := cmd.Flags().GetString("wallet")
	role, _ := cmd.Flags().GetString("role")

	actor, err := session.NewActor(name, email, wallet, role)
	if err != nil {
		return ports.Actor{}, errs.Wrap(err, "resolve acting user")
	}
	return actor, nil
}
