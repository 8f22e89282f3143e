package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the account service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authd",
		Short:         "Account service: registration, login and token issuance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPromoteCmd())

	return cmd
}
