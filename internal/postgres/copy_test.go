package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func TestQuoteLiteral(t *testing.T) {
	tests := map[string]string{
		",":        `','`,
		"'":        `''''`,
		`\`:        `E'\\'`,
		`\N`:       `E'\\N'`,
		`C:\it's`:  `E'C:\\it''s'`,
		"/tmp/a b": `'/tmp/a b'`,
	}
	for in, want := range tests {
		assert.Equal(t, want, quoteLiteral(in), in)
	}
}

func TestCopySpec_SQL(t *testing.T) {
	tests := []struct {
		name       string
		req        sqlport.BulkLoadRequest
		transcoded bool
		want       string
	}{
		{
			name: "defaults without escape",
			req:  sqlport.BulkLoadRequest{Table: "t", Path: "/f", Local: true},
			want: `COPY s ("a") FROM STDIN WITH (FORMAT csv, DELIMITER ',', QUOTE '"')`,
		},
		{
			name: "non-backslash escape keeps NULL default",
			req:  sqlport.BulkLoadRequest{Table: "t", Path: "/f", Local: true, EscapedBy: `"`, EnclosedBy: `'`},
			want: `COPY s ("a") FROM STDIN WITH (FORMAT csv, DELIMITER ',', QUOTE '''', ESCAPE '"')`,
		},
		{
			name:       "transcoded file is sent as UTF8",
			req:        sqlport.BulkLoadRequest{Table: "t", Path: "/f", Local: true, CharacterSet: "macroman"},
			transcoded: true,
			want:       `COPY s ("a") FROM STDIN WITH (FORMAT csv, DELIMITER ',', QUOTE '"', ENCODING 'UTF8')`,
		},
		{
			name: "local header is skipped client side",
			req:  sqlport.BulkLoadRequest{Table: "t", Path: "/f", Local: true, IgnoreLines: 1, CharacterSet: "utf8mb4"},
			want: `COPY s ("a") FROM STDIN WITH (FORMAT csv, DELIMITER ',', QUOTE '"', ENCODING 'UTF8')`,
		},
		{
			name: "server side file",
			req:  sqlport.BulkLoadRequest{Table: "t", Path: "/f.csv", IgnoreLines: 1, FieldsTerminatedBy: ";"},
			want: `COPY s ("a") FROM '/f.csv' WITH (FORMAT csv, DELIMITER ';', QUOTE '"', HEADER true)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newCopySpec("s", []string{"a"}, tt.req, tt.transcoded).SQL()
			assert.Equal(t, tt.want, got)
		})
	}
}
