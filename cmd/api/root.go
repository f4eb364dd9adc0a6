package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// NewRootCmd creates the root command. Running it without a subcommand serves the API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:              "fitmeta-api",
		Short:            "Fitmeta account and authentication API",
		SilenceUsage:     true,
		RunE:             runServe,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if err := godotenv.Load(envFile); err != nil {
				slog.Warn("no .env file found, using environment variables", "path", envFile)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
