package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

var (
	checkFlags   connectionFlags
	checkMinimum string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the server version and connection encoding",
	Long: `Connects to the target database and verifies that:
  - the server is at least the minimum version (9.5 for PostgreSQL,
    5.5 for MySQL, or minimum_server_version in sqlport.yaml)
  - the connection exchanges UTF-8 text

Example:
  sqlport check -d piwik`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	addConnectionFlags(checkCmd, &checkFlags)
	checkCmd.Flags().StringVar(&checkMinimum, "minimum-version", "", "Override the minimum server version")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	return withAdapter(cmd, &checkFlags, func(ctx context.Context, env *commandEnv, adapter sqlport.Adapter) error {
		out := cmd.OutOrStdout()

		serverVersion, err := adapter.ServerVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Engine:         %s\n", adapter.Engine())
		fmt.Fprintf(out, "Server version: %s\n", serverVersion)

		minimum := checkMinimum
		if minimum == "" {
			minimum = env.project.MinimumServerVersionFor(adapter.Engine())
		}
		if err := adapter.CheckServerVersion(ctx, minimum); err != nil {
			return err
		}
		fmt.Fprintf(out, "Minimum:        %s (ok)\n", minimum)

		utf8, err := adapter.IsConnectionUTF8(ctx)
		if err != nil {
			return err
		}
		if !utf8 {
			return fmt.Errorf("connection does not use UTF-8: %w", sqlport.ErrInvalidConfig)
		}
		fmt.Fprintln(out, "Encoding:       UTF-8 (ok)")
		return nil
	})
}
