package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// requireArgs validates that exactly len(names) positional arguments are
// provided. Returns a helpful error message with usage and an example if
// one is missing.
func requireArgs(example string, names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < len(names) {
			return fmt.Errorf(`missing required argument: <%s>

Usage: %s

Example:
  %s %s`, names[len(args)], cmd.UseLine(), cmd.CommandPath(), example)
		}
		if len(args) > len(names) {
			return fmt.Errorf("accepts %d arg(s), received %d", len(names), len(args))
		}
		return nil
	}
}

// RequireTableName validates that exactly one table argument is provided.
var RequireTableName = requireArgs("piwik_log_visit", "table")

// RequireDatabaseName validates that exactly one database argument is provided.
var RequireDatabaseName = requireArgs("piwik", "database")

// RequireTableAndFile validates the table and data file arguments of load.
var RequireTableAndFile = requireArgs("piwik_option ./option.csv", "table", "file")

// RequireStatementSource validates that statements come either from
// arguments or from --file, not both.
func RequireStatementSource(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	switch {
	case file == "" && len(args) == 0:
		return fmt.Errorf(`missing required argument: <statement>

Usage: %s

Example:
  %s "UPDATE %s SET option_value = '1' WHERE option_name = 'x'"
  %s --file ./statements.sql`, cmd.UseLine(), cmd.CommandPath(), "`piwik_option`", cmd.CommandPath())
	case file != "" && len(args) > 0:
		return fmt.Errorf("invalid argument: give statements as arguments or with --file, not both")
	}
	return nil
}
