package dialect

import "regexp"

type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// columnRules run in order over one buffer. Width qualifiers go first so the
// AUTO_INCREMENT rules only ever see bare type names. No replacement is
// matched by a later (or the same) rule, so rewriting is idempotent.
var columnRules = []rewriteRule{
	{regexp.MustCompile(`(?i)\bINT(?:EGER)?\s*\(\s*\w*\s*\)`), "INT"},
	{regexp.MustCompile(`(?i)\bMEDIUMINT\b(?:\s*\(\s*\w*\s*\))?`), "INT"},
	{regexp.MustCompile(`(?i)\b(BIGINT|SMALLINT)\s*\(\s*\w*\s*\)`), "$1"},
	{regexp.MustCompile(`(?i)\bTINYINT\b(?:\s*\(\s*\w*\s*\))?`), "SMALLINT"},
	{regexp.MustCompile(`(?i)(\b(?:BIG|SMALL)?INT(?:EGER)?)\s+UNSIGNED\b`), "$1"},
	{regexp.MustCompile(`(?i)\bBIGINT\s+(?:NOT\s+NULL\s+)?AUTO_INCREMENT\b`), "BIGSERIAL"},
	{regexp.MustCompile(`(?i)\bSMALLINT\s+(?:NOT\s+NULL\s+)?AUTO_INCREMENT\b`), "SMALLSERIAL"},
	{regexp.MustCompile(`(?i)\bINT(?:EGER)?\s+(?:NOT\s+NULL\s+)?AUTO_INCREMENT\b`), "SERIAL"},
}

// RewriteColumnDefinitions rewrites MySQL integer column types in a table
// body into their PostgreSQL equivalents:
//
//	INT(11) NOT NULL AUTO_INCREMENT  ->  SERIAL
//	INTEGER(10)                      ->  INT
//	TINYINT(1)                       ->  SMALLINT
//
// Anything else is returned unchanged.
func RewriteColumnDefinitions(def string) string {
	for _, r := range columnRules {
		def = r.pattern.ReplaceAllString(def, r.replacement)
	}
	return def
}
