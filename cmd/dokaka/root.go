package main

import (
	"github.com/spf13/cobra"

	"github.com/rikhii20/DoKaka/internal/config"
)

var envFile string

// NewRootCmd creates the root command for the dokaka CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dokaka",
		Short: "DoKaka - username/password auth service",
		Long: `DoKaka registers users and logs them in over a small JSON API,
issuing signed session tokens on success.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnvFile(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
