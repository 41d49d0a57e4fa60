package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var actorID string

func main() {
	_ = godotenv.Load(".env")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "iara: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iara",
		Short: "IARA administration CLI",
		Long: `iara runs administrative tasks against the IARA database: schema migration,
registration approvals, case inspection and export, system settings and AI provider checks.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&actorID, "as", "cli-admin", "Admin user id recorded on decisions")
	cmd.AddCommand(
		newMigrateCmd(),
		newApprovalsCmd(),
		newCasesCmd(),
		newLogsCmd(),
		newSettingsCmd(),
		newTestAICmd(),
	)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready dialect=%s\n", env.db.Dialect())
			return nil
		},
	}
}
