package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

var (
	execFlags connectionFlags
	execFile  string
)

var execCmd = &cobra.Command{
	Use:   "exec [statement...]",
	Short: "Execute MySQL-flavoured statements",
	Long: `Executes each statement in order and prints its affected row count.

Statements come from the arguments, or from a script given with --file
("-" reads standard input). A script is split on semicolons outside
literals and comments. Execution stops at the first failing statement.

On PostgreSQL, backtick identifiers are rewritten, LOCK/UNLOCK TABLES
succeed without locking, and LOAD DATA INFILE is emulated.

Examples:
  sqlport exec -d piwik "DELETE FROM ` + "`piwik_option`" + ` WHERE option_name = 'x'"
  sqlport exec --connection mysql://root@localhost/piwik --file ./upgrade.sql`,
	Args: RequireStatementSource,
	RunE: runExec,
}

func init() {
	addConnectionFlags(execCmd, &execFlags)
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Script of semicolon-separated statements (- for stdin)")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	statements := args
	if execFile != "" {
		script, err := readScript(cmd.InOrStdin(), execFile)
		if err != nil {
			return err
		}
		if statements, err = dialect.SplitStatements(script); err != nil {
			return err
		}
	}

	return withAdapter(cmd, &execFlags, func(ctx context.Context, env *commandEnv, adapter sqlport.Adapter) error {
		out := cmd.OutOrStdout()
		var total int64
		for i, stmt := range statements {
			env.logger.Verbose("statement %d: %s", i+1, dialect.Preview(stmt))
			n, err := adapter.Exec(ctx, stmt)
			if err != nil {
				return fmt.Errorf("statement %d of %d: %w", i+1, len(statements), err)
			}
			total += n
			fmt.Fprintf(out, "%d row(s) affected\n", n)
		}
		if len(statements) > 1 {
			fmt.Fprintf(out, "%d statements, %d row(s) affected\n", len(statements), total)
		}
		return nil
	})
}

func readScript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", path, err)
	}
	return string(data), nil
}
