package dialect

import (
	"strconv"
	"strings"
)

// RewriteQuotes converts MySQL backtick-quoted identifiers to standard
// double-quoted identifiers.
//
// Single-quoted string literals are copied untouched, honouring both the
// doubled-quote and the backslash escape forms MySQL emits. Inside an
// identifier a doubled backtick becomes a literal backtick and a double
// quote is doubled.
func RewriteQuotes(sql string) string {
	if !strings.Contains(sql, "`") {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql))

	for i := 0; i < len(sql); {
		switch sql[i] {
		case '\'':
			end := skipStringLiteral(sql, i)
			b.WriteString(sql[i:end])
			i = end
		case '`':
			i = writeIdentifier(&b, sql, i)
		default:
			b.WriteByte(sql[i])
			i++
		}
	}
	return b.String()
}

// writeIdentifier writes the backtick identifier starting at sql[start] in
// double-quoted form and returns the index just past it.
func writeIdentifier(b *strings.Builder, sql string, start int) int {
	b.WriteByte('"')
	for i := start + 1; i < len(sql); i++ {
		switch {
		case sql[i] == '`' && i+1 < len(sql) && sql[i+1] == '`':
			b.WriteByte('`')
			i++
		case sql[i] == '`':
			b.WriteByte('"')
			return i + 1
		case sql[i] == '"':
			b.WriteString(`""`)
		default:
			b.WriteByte(sql[i])
		}
	}
	// unterminated: close it so the server reports the syntax error
	b.WriteByte('"')
	return len(sql)
}

// skipStringLiteral returns the index just past the single-quoted literal
// starting at sql[start].
func skipStringLiteral(sql string, start int) int {
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			i++
		case '\'':
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(sql)
}

// BindPlaceholders numbers the positional ? markers of sql as $1, $2, ...
// Markers inside string literals and quoted identifiers are left alone.
// It returns the rewritten text and the number of markers found.
func BindPlaceholders(sql string) (string, int) {
	if !strings.Contains(sql, "?") {
		return sql, 0
	}

	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0

	for i := 0; i < len(sql); {
		switch c := sql[i]; c {
		case '\'':
			end := skipStringLiteral(sql, i)
			b.WriteString(sql[i:end])
			i = end
		case '"', '`':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				b.WriteString(sql[i:])
				return b.String(), n
			}
			b.WriteString(sql[i : i+end+2])
			i += end + 2
		case '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), n
}
