// Command rentledger runs the scheduled rent billing jobs.
//
//	rentledger generate-rent   --driver pg --dsn postgres://...
//	rentledger apply-late-fees --date 2024-01-15
//	rentledger migrate
//
// Flags may also be given in a YAML config file (--config) or as
// RENTLEDGER_* environment variables, e.g. RENTLEDGER_DSN or
// RENTLEDGER_LATE_FEE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:           "rentledger",
		Short:         "Hostel rent billing jobs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("driver", "pg", "Store driver (pg, sqlite, mongo, memory)")
	flags.String("dsn", "", "Database connection string")
	flags.String("redis-addr", "", "Redis address for the batch job lock (optional)")
	flags.Bool("log-json", false, "Log as JSON")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(generateRentCmd(rt))
	rootCmd.AddCommand(applyLateFeesCmd(rt))
	rootCmd.AddCommand(migrateCmd(rt))

	return rootCmd
}

func generateRentCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-rent",
		Short: "Create this month's rent records for housed students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := dateFlag(cmd)
			if err != nil {
				return err
			}
			return rt.runJob(cmd, "generate-rent", func(app *application) error {
				n, err := app.ledger.GenerateRent(cmd.Context(), ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d rent records\n", n)
				return nil
			})
		},
	}
	cmd.Flags().String("date", "", "Reference date (YYYY-MM-DD); defaults to today")
	return cmd
}

func applyLateFeesCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-late-fees",
		Short: "Charge the late fee on overdue unpaid rent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today, err := dateFlag(cmd)
			if err != nil {
				return err
			}
			return rt.runJob(cmd, "apply-late-fees", func(app *application) error {
				n, err := app.ledger.ApplyLateFees(cmd.Context(), today)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied late fee to %d records\n", n)
				return nil
			})
		},
	}
	cmd.Flags().String("date", "", "Assessment date (YYYY-MM-DD); defaults to today")
	return cmd
}

func migrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the rentledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
