package dialect

import (
	"fmt"
	"strings"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuotedIdent
	tokString
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string // decoded value for strings and quoted identifiers
	quote byte   // opening quote for tokString
	pos   int
}

func (t token) is(keyword string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, keyword)
}

// tokenize splits a MySQL statement into words, quoted identifiers, string
// literals and punctuation. Comments are dropped.
func tokenize(sql string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '#' || (c == '-' && strings.HasPrefix(sql[i:], "-- ")):
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment at offset %d: %w", i, sqlport.ErrUnsupportedStatement)
			}
			i += end + 4
		case c == '\'' || c == '"':
			val, next, err := readString(sql, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: val, quote: c, pos: i})
			i = next
		case c == '`':
			val, next, err := readBacktick(sql, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: val, pos: i})
			i = next
		case isWordByte(c):
			start := i
			for i < len(sql) && isWordByte(sql[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: sql[start:i], pos: start})
		default:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(sql)}), nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '@' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}

// readString decodes the MySQL string literal starting at sql[start].
func readString(sql string, start int) (string, int, error) {
	q := sql[start]
	var b strings.Builder
	for i := start + 1; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\\' && i+1 < len(sql):
			i++
			b.WriteString(unescapeByte(sql[i]))
		case c == q && i+1 < len(sql) && sql[i+1] == q:
			b.WriteByte(q)
			i++
		case c == q:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d: %w", start, sqlport.ErrUnsupportedStatement)
}

func readBacktick(sql string, start int) (string, int, error) {
	var b strings.Builder
	for i := start + 1; i < len(sql); i++ {
		if sql[i] == '`' {
			if i+1 < len(sql) && sql[i+1] == '`' {
				b.WriteByte('`')
				i++
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(sql[i])
	}
	return "", 0, fmt.Errorf("unterminated identifier at offset %d: %w", start, sqlport.ErrUnsupportedStatement)
}

// unescapeByte maps the character after a backslash to its value.
// \% and \_ keep their backslash, as MySQL does.
func unescapeByte(c byte) string {
	switch c {
	case '0':
		return "\x00"
	case 'b':
		return "\b"
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case 'Z':
		return "\x1a"
	case '%', '_':
		return `\` + string(c)
	default:
		return string(c)
	}
}

// quoteString renders s as a single-quoted MySQL string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0x1a:
			b.WriteString(`\Z`)
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// quoteIdent renders name as a backtick-quoted MySQL identifier.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
