package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// loadOptions mirrors the clauses of LOAD DATA INFILE.
type loadOptions struct {
	columns            []string
	charset            string
	delimiter          string
	enclosedBy         string
	optionallyEnclosed bool
	escapedBy          string
	linesTerminatedBy  string
	ignoreLines        int
	ignoreDuplicates   bool
	serverFile         bool
}

var (
	loadFlags connectionFlags
	loadOpts  loadOptions
)

var loadCmd = &cobra.Command{
	Use:   "load <table> <file>",
	Short: "Bulk load a delimited data file into a table",
	Long: `Loads a delimited file into a table the way LOAD DATA INFILE does.

Rows whose primary key already exists are replaced, or kept with --ignore.
On PostgreSQL the file is copied into a staging table and merged with
INSERT ... ON CONFLICT. Files ending in .gz or .zst are decompressed.

Escape sequences \t, \n and \r are understood in separator flags.

Examples:
  sqlport load -d piwik piwik_option ./option.csv
  sqlport load piwik_log_action ./actions.tsv --delimiter '\t' --columns idaction,name,hash,type`,
	Args: RequireTableAndFile,
	RunE: runLoad,
}

func init() {
	addConnectionFlags(loadCmd, &loadFlags)
	fs := loadCmd.Flags()
	fs.StringSliceVar(&loadOpts.columns, "columns", nil, "File columns in order (default: every table column)")
	fs.StringVar(&loadOpts.charset, "charset", "", "Character set of the file (utf8, latin1, ...)")
	fs.StringVar(&loadOpts.delimiter, "delimiter", sqlport.DefaultFieldDelimiter, "Field delimiter")
	fs.StringVar(&loadOpts.enclosedBy, "enclosed-by", "", "Field quote character")
	fs.BoolVar(&loadOpts.optionallyEnclosed, "optionally-enclosed", false, "Only some fields are quoted")
	fs.StringVar(&loadOpts.escapedBy, "escaped-by", "", "Escape character inside fields")
	fs.StringVar(&loadOpts.linesTerminatedBy, "lines-terminated-by", "", "Record terminator")
	fs.IntVar(&loadOpts.ignoreLines, "ignore-lines", 0, "Number of leading lines to skip")
	fs.BoolVar(&loadOpts.ignoreDuplicates, "ignore", false, "Keep existing rows on primary key conflicts")
	fs.BoolVar(&loadOpts.serverFile, "server-file", false, "The file lives on the database server (LOAD DATA without LOCAL)")
	rootCmd.AddCommand(loadCmd)
}

var flagEscapes = strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r", `\\`, `\`)

// buildLoadRequest turns the load arguments into a validated request.
func buildLoadRequest(table, path string, o loadOptions) (sqlport.BulkLoadRequest, error) {
	req := sqlport.BulkLoadRequest{
		Table:              table,
		Columns:            o.columns,
		Path:               path,
		Local:              !o.serverFile,
		CharacterSet:       o.charset,
		FieldsTerminatedBy: flagEscapes.Replace(o.delimiter),
		EnclosedBy:         flagEscapes.Replace(o.enclosedBy),
		OptionallyEnclosed: o.optionallyEnclosed,
		EscapedBy:          flagEscapes.Replace(o.escapedBy),
		LinesTerminatedBy:  flagEscapes.Replace(o.linesTerminatedBy),
		IgnoreLines:        o.ignoreLines,
		OnConflict:         sqlport.ConflictUpdate,
	}
	if o.ignoreDuplicates {
		req.OnConflict = sqlport.ConflictIgnore
	}
	if err := req.Validate(); err != nil {
		return sqlport.BulkLoadRequest{}, err
	}
	return req, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	req, err := buildLoadRequest(args[0], args[1], loadOpts)
	if err != nil {
		return err
	}
	return withAdapter(cmd, &loadFlags, func(ctx context.Context, env *commandEnv, adapter sqlport.Adapter) error {
		if !adapter.HasBulkLoader() {
			return fmt.Errorf("%s adapter has no bulk loader: %w", adapter.Engine(), sqlport.ErrUnsupportedEngine)
		}
		n, err := adapter.BulkLoad(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) loaded into %s\n", n, req.Table)
		return nil
	})
}
