package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// ParseLoadData extracts a BulkLoadRequest from a LOAD DATA statement:
//
//	LOAD DATA [LOW_PRIORITY | CONCURRENT] [LOCAL] INFILE 'file'
//	    [REPLACE | IGNORE] INTO TABLE tbl [PARTITION (p, ...)]
//	    [CHARACTER SET cs]
//	    [{FIELDS | COLUMNS} [TERMINATED BY 's'] [[OPTIONALLY] ENCLOSED BY 'c'] [ESCAPED BY 'c']]
//	    [LINES [STARTING BY 's'] [TERMINATED BY 's']]
//	    [IGNORE n {LINES | ROWS}]
//	    [(col, ...)]
//
// Clauses must appear in that order. Absent optional clauses leave the
// corresponding field empty. The table may be written bare, in backticks or
// in double quotes; a database qualifier is dropped. Column lists with user
// variables and SET clauses cannot be replayed through a staging table and
// are rejected with ErrUnsupportedStatement.
func ParseLoadData(sql string) (sqlport.BulkLoadRequest, error) {
	toks, err := tokenize(sql)
	if err != nil {
		return sqlport.BulkLoadRequest{}, err
	}
	p := &loadParser{toks: toks, sql: sql}

	req, err := p.parse()
	if err != nil {
		return sqlport.BulkLoadRequest{}, err
	}
	return req, nil
}

type loadParser struct {
	toks []token
	pos  int
	sql  string
}

func (p *loadParser) peek() token { return p.toks[p.pos] }

func (p *loadParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the keyword sequence if every word matches.
func (p *loadParser) accept(words ...string) bool {
	for i, w := range words {
		if p.pos+i >= len(p.toks) || !p.toks[p.pos+i].is(w) {
			return false
		}
	}
	p.pos += len(words)
	return true
}

func (p *loadParser) expect(words ...string) error {
	if !p.accept(words...) {
		return p.errorf("expected %s", strings.Join(words, " "))
	}
	return nil
}

func (p *loadParser) acceptPunct(s string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == s {
		p.pos++
		return true
	}
	return false
}

func (p *loadParser) errorf(format string, args ...any) error {
	t := p.peek()
	near := "end of statement"
	if t.kind != tokEOF {
		near = Preview(p.sql[t.pos:])
		if len(near) > 32 {
			near = near[:32]
		}
		near = strconv.Quote(near)
	}
	return fmt.Errorf("LOAD DATA: %s near %s: %w", fmt.Sprintf(format, args...), near, sqlport.ErrUnsupportedStatement)
}

func (p *loadParser) stringLit(clause string) (string, error) {
	t := p.peek()
	if t.kind != tokString {
		return "", p.errorf("%s requires a string literal", clause)
	}
	p.pos++
	return t.text, nil
}

// identifier reads a bare, backtick or double-quoted name.
func (p *loadParser) identifier(what string) (string, error) {
	t := p.peek()
	switch {
	case t.kind == tokQuotedIdent:
	case t.kind == tokString && t.quote == '"':
	case t.kind == tokWord && !strings.HasPrefix(t.text, "@"):
	default:
		return "", p.errorf("expected %s", what)
	}
	p.pos++
	if t.text == "" {
		return "", p.errorf("empty %s", what)
	}
	return t.text, nil
}

func (p *loadParser) parse() (sqlport.BulkLoadRequest, error) {
	var req sqlport.BulkLoadRequest

	if err := p.expect("LOAD", "DATA"); err != nil {
		return req, err
	}
	_ = p.accept("LOW_PRIORITY") || p.accept("CONCURRENT")
	req.Local = p.accept("LOCAL")
	if err := p.expect("INFILE"); err != nil {
		return req, err
	}
	path, err := p.stringLit("INFILE")
	if err != nil {
		return req, err
	}
	req.Path = path

	switch {
	case p.accept("REPLACE"):
		req.OnConflict = sqlport.ConflictUpdate
	case p.accept("IGNORE"):
		req.OnConflict = sqlport.ConflictIgnore
	}

	if err := p.expect("INTO", "TABLE"); err != nil {
		return req, err
	}
	if req.Table, err = p.identifier("table name"); err != nil {
		return req, err
	}
	if p.acceptPunct(".") {
		if req.Table, err = p.identifier("table name"); err != nil {
			return req, err
		}
	}

	if p.accept("PARTITION") {
		if err := p.skipParenthesized(); err != nil {
			return req, err
		}
	}

	if p.accept("CHARACTER", "SET") || p.accept("CHARSET") {
		t := p.peek()
		if t.kind != tokWord && t.kind != tokString && t.kind != tokQuotedIdent {
			return req, p.errorf("CHARACTER SET requires a name")
		}
		p.pos++
		req.CharacterSet = t.text
	}

	if p.accept("FIELDS") || p.accept("COLUMNS") {
		if err := p.parseFields(&req); err != nil {
			return req, err
		}
	}

	if p.accept("LINES") {
		if err := p.parseLines(&req); err != nil {
			return req, err
		}
	}

	if p.accept("IGNORE") {
		t := p.peek()
		n, convErr := strconv.Atoi(t.text)
		if t.kind != tokWord || convErr != nil || n < 0 {
			return req, p.errorf("IGNORE requires a line count")
		}
		p.pos++
		if !p.accept("LINES") && !p.accept("ROWS") {
			return req, p.errorf("expected LINES or ROWS")
		}
		req.IgnoreLines = n
	}

	if p.acceptPunct("(") {
		cols, err := p.parseColumns()
		if err != nil {
			return req, err
		}
		req.Columns = cols
	}

	if p.peek().is("SET") {
		return req, p.errorf("SET clause is not supported")
	}

	p.acceptPunct(";")
	if p.peek().kind != tokEOF {
		return req, p.errorf("unexpected trailing input")
	}
	return req, nil
}

func (p *loadParser) parseFields(req *sqlport.BulkLoadRequest) error {
	seen := false
	for {
		var err error
		switch {
		case p.accept("TERMINATED", "BY"):
			req.FieldsTerminatedBy, err = p.stringLit("TERMINATED BY")
		case p.accept("OPTIONALLY", "ENCLOSED", "BY"):
			req.OptionallyEnclosed = true
			req.EnclosedBy, err = p.stringLit("ENCLOSED BY")
		case p.accept("ENCLOSED", "BY"):
			req.EnclosedBy, err = p.stringLit("ENCLOSED BY")
		case p.accept("ESCAPED", "BY"):
			req.EscapedBy, err = p.stringLit("ESCAPED BY")
		default:
			if !seen {
				return p.errorf("FIELDS requires TERMINATED, ENCLOSED or ESCAPED BY")
			}
			return nil
		}
		if err != nil {
			return err
		}
		seen = true
	}
}

func (p *loadParser) parseLines(req *sqlport.BulkLoadRequest) error {
	seen := false
	for {
		var err error
		switch {
		case p.accept("STARTING", "BY"):
			req.LinesStartingBy, err = p.stringLit("STARTING BY")
		case p.accept("TERMINATED", "BY"):
			req.LinesTerminatedBy, err = p.stringLit("TERMINATED BY")
		default:
			if !seen {
				return p.errorf("LINES requires STARTING or TERMINATED BY")
			}
			return nil
		}
		if err != nil {
			return err
		}
		seen = true
	}
}

func (p *loadParser) parseColumns() ([]string, error) {
	cols := []string{}
	if p.acceptPunct(")") {
		return cols, nil
	}
	for {
		if t := p.peek(); t.kind == tokWord && strings.HasPrefix(t.text, "@") {
			return nil, p.errorf("user variable %s in column list is not supported", t.text)
		}
		col, err := p.identifier("column name")
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.acceptPunct(")") {
			return cols, nil
		}
		if !p.acceptPunct(",") {
			return nil, p.errorf("expected , or ) in column list")
		}
	}
}

func (p *loadParser) skipParenthesized() error {
	if !p.acceptPunct("(") {
		return p.errorf("expected (")
	}
	for depth := 1; depth > 0; {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return p.errorf("unbalanced parentheses")
		case t.kind == tokPunct && t.text == "(":
			depth++
		case t.kind == tokPunct && t.text == ")":
			depth--
		}
	}
	return nil
}

// FormatLoadData renders req as a MySQL LOAD DATA statement.
// ConflictUpdate is written as REPLACE.
func FormatLoadData(req sqlport.BulkLoadRequest) string {
	var b strings.Builder
	b.WriteString("LOAD DATA ")
	if req.Local {
		b.WriteString("LOCAL ")
	}
	b.WriteString("INFILE ")
	b.WriteString(quoteString(req.Path))
	if req.OnConflict == sqlport.ConflictIgnore {
		b.WriteString(" IGNORE")
	} else {
		b.WriteString(" REPLACE")
	}
	b.WriteString(" INTO TABLE ")
	b.WriteString(quoteIdent(req.Table))

	if req.CharacterSet != "" {
		b.WriteString(" CHARACTER SET ")
		b.WriteString(req.CharacterSet)
	}

	if req.FieldsTerminatedBy != "" || req.EnclosedBy != "" || req.EscapedBy != "" {
		b.WriteString(" FIELDS")
		if req.FieldsTerminatedBy != "" {
			b.WriteString(" TERMINATED BY " + quoteString(req.FieldsTerminatedBy))
		}
		if req.EnclosedBy != "" {
			if req.OptionallyEnclosed {
				b.WriteString(" OPTIONALLY")
			}
			b.WriteString(" ENCLOSED BY " + quoteString(req.EnclosedBy))
		}
		if req.EscapedBy != "" {
			b.WriteString(" ESCAPED BY " + quoteString(req.EscapedBy))
		}
	}

	if req.LinesStartingBy != "" || req.LinesTerminatedBy != "" {
		b.WriteString(" LINES")
		if req.LinesStartingBy != "" {
			b.WriteString(" STARTING BY " + quoteString(req.LinesStartingBy))
		}
		if req.LinesTerminatedBy != "" {
			b.WriteString(" TERMINATED BY " + quoteString(req.LinesTerminatedBy))
		}
	}

	if req.IgnoreLines > 0 {
		fmt.Fprintf(&b, " IGNORE %d LINES", req.IgnoreLines)
	}

	if len(req.Columns) > 0 {
		quoted := make([]string, len(req.Columns))
		for i, c := range req.Columns {
			quoted[i] = quoteIdent(c)
		}
		b.WriteString(" (" + strings.Join(quoted, ", ") + ")")
	}
	return b.String()
}
