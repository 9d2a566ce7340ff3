package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sqlport",
	Short: "Run MySQL-flavoured SQL against PostgreSQL or MySQL",
	Long: `sqlport executes statements written for MySQL against a PostgreSQL or
MySQL server. On PostgreSQL it rewrites backtick identifiers, answers
LOCK TABLES without locking, and emulates LOAD DATA INFILE with COPY into a
staging table followed by an upsert.

It also installs the application's core tables on PostgreSQL.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - User denied a destructive operation
  13 - SQL execution failed
  14 - Statement could not be translated
  15 - Server older than the configured minimum`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for sqlport")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
