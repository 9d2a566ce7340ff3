package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

var (
	queryFlags  connectionFlags
	queryFormat string
)

var queryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Run a query and print its rows",
	Long: `Runs one query through the adapter and prints every row.

Columns are printed in name order.

Formats: table (default), csv, markdown, json.

Examples:
  sqlport query -d piwik "SELECT option_name, option_value FROM ` + "`piwik_option`" + `"
  sqlport query --format csv "SELECT * FROM piwik_site"`,
	Args: requireArgs(`"SELECT * FROM piwik_site"`, "statement"),
	RunE: runQuery,
}

func init() {
	addConnectionFlags(queryCmd, &queryFlags)
	queryCmd.Flags().StringVar(&queryFormat, "format", "table", "Output format: table, csv, markdown, json")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if !slices.Contains([]string{"table", "csv", "markdown", "md", "json"}, queryFormat) {
		return fmt.Errorf("invalid argument %q for --format: %w", queryFormat, sqlport.ErrInvalidConfig)
	}
	return withAdapter(cmd, &queryFlags, func(ctx context.Context, _ *commandEnv, adapter sqlport.Adapter) error {
		rows, err := adapter.FetchAll(ctx, args[0])
		if err != nil {
			return err
		}
		return renderRows(cmd.OutOrStdout(), rows, queryFormat)
	})
}

// renderRows writes rows in format. Columns are the union of the row keys in name order.
func renderRows(w io.Writer, rows []map[string]any, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []map[string]any{}
		}
		return enc.Encode(rows)
	}

	cols := columnsOf(rows)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = formatValue(r[c])
		}
		t.AppendRow(row)
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "markdown", "md":
		t.RenderMarkdown()
	default:
		if len(rows) == 0 {
			fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		t.Render()
		fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	return nil
}

func columnsOf(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	slices.Sort(cols)
	return cols
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
