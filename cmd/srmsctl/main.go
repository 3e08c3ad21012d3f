// srmsctl is the operator CLI: schema migration, admin seeding and offline
// fingerprint, record id and ledger checks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"srms_backend/internals/configs"
)

const programName = "srmsctl"

func loadEnv() (*configs.Env, error) {
	env, err := configs.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return env, nil
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Student record management operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(seedAdminCommand())
	rootCmd.AddCommand(hashCommand())
	rootCmd.AddCommand(deriveCommand())
	rootCmd.AddCommand(verifyCommand())
	rootCmd.AddCommand(ledgerVerifyCommand())
	return rootCmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
