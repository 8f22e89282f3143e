package main

import (
	"errors"
	"fmt"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/db/postgres"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/spf13/cobra"
)

// NewPromoteCmd creates the promote subcommand, which sets a user's role
// directly in the database. It is the only way to create the first admin.
func NewPromoteCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant a role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := model.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			return withSQL(cmd, func(db *dbHandle) error {
				users := postgres.NewPostgresUserRepo(db.orm)
				err := users.SetRole(cmd.Context(), args[0], r)
				if errors.Is(err, authErrors.ErrNotFound) {
					return fmt.Errorf("user %q not found", args[0])
				}
				if err != nil {
					return err
				}
				cmd.Printf("%s is now %s\n", args[0], r)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "role to grant (user|admin)")
	return cmd
}
