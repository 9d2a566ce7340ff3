package dialect

import "strings"

// mysqlEncodings maps MySQL character set names to PostgreSQL client encodings.
// MySQL's latin1 is really Windows-1252.
var mysqlEncodings = map[string]string{
	"utf8":    "UTF8",
	"utf8mb3": "UTF8",
	"utf8mb4": "UTF8",
	"ascii":   "SQL_ASCII",
	"latin1":  "WIN1252",
	"latin2":  "LATIN2",
	"latin5":  "LATIN5",
	"latin7":  "LATIN7",
	"cp1250":  "WIN1250",
	"cp1251":  "WIN1251",
	"cp1256":  "WIN1256",
	"cp1257":  "WIN1257",
	"cp866":   "WIN866",
	"koi8r":   "KOI8R",
	"koi8u":   "KOI8U",
	"greek":   "ISO_8859_7",
	"hebrew":  "ISO_8859_8",
	"euckr":   "EUC_KR",
	"gb2312":  "EUC_CN",
	"gbk":     "GBK",
	"big5":    "BIG5",
	"sjis":    "SJIS",
	"ujis":    "EUC_JP",
}

// PostgresEncoding returns the PostgreSQL encoding for a MySQL character set.
// Empty and binary yield "" (no conversion). Unknown names are passed
// through upper-cased for the server to accept or reject.
func PostgresEncoding(charset string) string {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "binary" || name == "default" {
		return ""
	}
	if enc, ok := mysqlEncodings[name]; ok {
		return enc
	}
	return strings.ToUpper(name)
}
