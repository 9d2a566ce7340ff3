package dialect

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

var (
	// leadingNoise matches whitespace and comments ahead of the first keyword.
	leadingNoise = regexp.MustCompile(`^(?:\s|--[^\n]*|#[^\n]*|(?s:/\*.*?\*/))*`)

	lockPrefix = regexp.MustCompile(`(?i)^(UN)?LOCK\s+TABLES?\b`)
	loadPrefix = regexp.MustCompile(`(?i)^LOAD\s+DATA\b`)
)

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// stripLeadingNoise removes whitespace and comments before the first keyword.
func stripLeadingNoise(sql string) string {
	return sql[len(leadingNoise.FindString(sql)):]
}

// Classify reports how sql must be routed.
//
// Statements that begin with LOCK/UNLOCK TABLES or LOAD DATA must also be
// accepted by the MySQL grammar; if not, Classify returns
// ErrUnsupportedStatement rather than guessing. Everything else is plain.
func Classify(sql string) (sqlport.StatementKind, error) {
	body := strings.TrimSpace(stripLeadingNoise(sql))
	if body == "" || body == ";" {
		return sqlport.KindPlain, fmt.Errorf("empty statement: %w", sqlport.ErrUnsupportedStatement)
	}

	switch {
	case lockPrefix.MatchString(body):
		if err := confirm(body, sqlport.KindLock); err != nil {
			return sqlport.KindPlain, err
		}
		return sqlport.KindLock, nil
	case loadPrefix.MatchString(body):
		if err := confirm(body, sqlport.KindBulkLoad); err != nil {
			return sqlport.KindPlain, err
		}
		return sqlport.KindBulkLoad, nil
	default:
		return sqlport.KindPlain, nil
	}
}

// confirm parses body with the MySQL grammar and checks it produced the
// statement type the prefix promised.
func confirm(body string, want sqlport.StatementKind) error {
	p, err := getParser()
	if err != nil {
		return fmt.Errorf("creating parser: %w", err)
	}

	stmt, err := p.Parse(body)
	if err != nil {
		return fmt.Errorf("%s statement %q: %v: %w", want, Preview(body), err, sqlport.ErrUnsupportedStatement)
	}

	var got sqlport.StatementKind
	switch stmt.(type) {
	case *sqlparser.LockTables, *sqlparser.UnlockTables:
		got = sqlport.KindLock
	case *sqlparser.Load:
		got = sqlport.KindBulkLoad
	default:
		got = sqlport.KindPlain
	}
	if got != want {
		return fmt.Errorf("statement %q parsed as %s, expected %s: %w", Preview(body), got, want, sqlport.ErrUnsupportedStatement)
	}
	return nil
}

// Parse classifies sql and returns the matching statement variant.
func Parse(sql string) (sqlport.Statement, error) {
	kind, err := Classify(sql)
	if err != nil {
		return nil, err
	}

	switch kind {
	case sqlport.KindLock:
		body := strings.TrimSpace(stripLeadingNoise(sql))
		return sqlport.LockStatement{
			SQL:    sql,
			Unlock: strings.HasPrefix(strings.ToUpper(body), "UN"),
		}, nil
	case sqlport.KindBulkLoad:
		req, err := ParseLoadData(sql)
		if err != nil {
			return nil, err
		}
		return req, nil
	default:
		return sqlport.PlainStatement{SQL: sql}, nil
	}
}

// Preview shortens sql for error messages and logs.
func Preview(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > sqlport.MaxErrorPreviewLength {
		return s[:sqlport.MaxErrorPreviewLength] + "..."
	}
	return s
}

// SplitStatements cuts a script into its semicolon-separated statements
// using the MySQL tokenizer, so semicolons inside literals and comments do
// not split. Empty statements are dropped.
func SplitStatements(script string) ([]string, error) {
	parser, err := getParser()
	if err != nil {
		return nil, err
	}
	pieces, err := parser.SplitStatementToPieces(script)
	if err != nil {
		return nil, fmt.Errorf("split statements: %v: %w", err, sqlport.ErrUnsupportedStatement)
	}
	out := pieces[:0]
	for _, p := range pieces {
		if p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), ";")); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
