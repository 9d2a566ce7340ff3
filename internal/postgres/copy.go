package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/sqlport/internal/datafile"
	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// copyStdin is the COPY source for client-streamed data.
const copyStdin = "STDIN"

// copySpec is the translation of a LOAD DATA request into COPY options.
type copySpec struct {
	table    string
	columns  []string
	source   string
	encoding string
	header   bool
	req      sqlport.BulkLoadRequest
}

// checkCopyable rejects requests COPY has no equivalent for.
func checkCopyable(req sqlport.BulkLoadRequest) error {
	if req.LinesStartingBy != "" {
		return fmt.Errorf("LINES STARTING BY %q: %w", req.LinesStartingBy, sqlport.ErrUnsupportedStatement)
	}
	if req.Local {
		return nil
	}
	// The server reads the file itself, so only a header line can be skipped
	// and no client-side decoding is possible.
	if req.IgnoreLines > 1 {
		return fmt.Errorf("IGNORE %d LINES without LOCAL: %w", req.IgnoreLines, sqlport.ErrUnsupportedStatement)
	}
	if c := datafile.DetectCompression(req.Path); c != datafile.CompressionNone {
		return fmt.Errorf("%s compressed file without LOCAL: %w", c, sqlport.ErrUnsupportedStatement)
	}
	if datafile.ClientDecoder(req.CharacterSet) != nil {
		return fmt.Errorf("character set %s without LOCAL: %w", req.CharacterSet, sqlport.ErrUnsupportedStatement)
	}
	return nil
}

// SQL renders the COPY statement.
func (c copySpec) SQL() string {
	var b strings.Builder
	b.WriteString("COPY ")
	b.WriteString(c.table)
	if len(c.columns) > 0 {
		quoted := make([]string, len(c.columns))
		for i, col := range c.columns {
			quoted[i] = pgx.Identifier{col}.Sanitize()
		}
		b.WriteString(" (" + strings.Join(quoted, ", ") + ")")
	}
	b.WriteString(" FROM ")
	if c.source == copyStdin {
		b.WriteString(copyStdin)
	} else {
		b.WriteString(quoteLiteral(c.source))
	}

	opts := []string{
		"FORMAT csv",
		"DELIMITER " + quoteLiteral(c.req.Delimiter()),
		"QUOTE " + quoteLiteral(c.req.Quote()),
	}
	if c.req.EscapedBy != "" {
		opts = append(opts, "ESCAPE "+quoteLiteral(c.req.EscapedBy))
	}
	if c.req.EscapedBy == `\` {
		opts = append(opts, "NULL "+quoteLiteral(sqlport.MySQLNullMarker))
	}
	if c.header {
		opts = append(opts, "HEADER true")
	}
	if c.encoding != "" {
		opts = append(opts, "ENCODING "+quoteLiteral(c.encoding))
	}
	b.WriteString(" WITH (" + strings.Join(opts, ", ") + ")")
	return b.String()
}

// newCopySpec prepares the COPY into staging for req. transcoded marks a
// local file that was already converted to UTF-8 on the client.
func newCopySpec(staging string, columns []string, req sqlport.BulkLoadRequest, transcoded bool) copySpec {
	spec := copySpec{
		table:    staging,
		columns:  columns,
		source:   copyStdin,
		encoding: dialect.PostgresEncoding(req.CharacterSet),
		req:      req,
	}
	if transcoded {
		spec.encoding = "UTF8"
	}
	if !req.Local {
		spec.source = req.Path
		spec.header = req.IgnoreLines == 1
	}
	return spec
}

// quoteLiteral renders s as a string literal that parses the same with
// standard_conforming_strings on or off.
func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `'`, `''`)
	if strings.Contains(s, `\`) {
		return `E'` + strings.ReplaceAll(s, `\`, `\\`) + `'`
	}
	return `'` + s + `'`
}
