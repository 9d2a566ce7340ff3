package sqlport

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ConflictAction selects what the merge does with rows whose primary key
// already exists in the target table.
type ConflictAction int

const (
	// ConflictUpdate overwrites every non-key column (LOAD DATA ... REPLACE,
	// and the default).
	ConflictUpdate ConflictAction = iota
	// ConflictIgnore keeps the existing row (LOAD DATA ... IGNORE).
	ConflictIgnore
)

// String returns a human-readable string representation of the ConflictAction.
func (c ConflictAction) String() string {
	switch c {
	case ConflictUpdate:
		return "update"
	case ConflictIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// BulkLoadRequest describes one LOAD DATA INFILE instruction.
// Optional clauses the statement omitted are left as zero values.
type BulkLoadRequest struct {
	// Table is the target table as the statement named it, identifier quotes removed.
	Table string

	// Columns lists the file's columns in file order. Empty means every
	// column of the target table in ordinal order.
	Columns []string

	// Path is the data file location.
	Path string

	// Local marks LOAD DATA LOCAL: the file lives on the client and is
	// streamed over the connection instead of read by the server.
	Local bool

	// CharacterSet is the MySQL character set name of the file (utf8, latin1, ...).
	CharacterSet string

	// FieldsTerminatedBy is the field delimiter.
	FieldsTerminatedBy string

	// EnclosedBy is the quote character around field values.
	EnclosedBy string

	// OptionallyEnclosed is set for OPTIONALLY ENCLOSED BY.
	OptionallyEnclosed bool

	// EscapedBy is the escape character inside field values.
	EscapedBy string

	// LinesStartingBy is a prefix MySQL strips from every record.
	LinesStartingBy string

	// LinesTerminatedBy is the record terminator.
	LinesTerminatedBy string

	// IgnoreLines is the number of leading lines to skip.
	IgnoreLines int

	// OnConflict is the duplicate-key policy of the merge.
	OnConflict ConflictAction
}

// Kind implements Statement.
func (BulkLoadRequest) Kind() StatementKind { return KindBulkLoad }
func (BulkLoadRequest) statement()          {}

// StagingTable returns the name of the transient table the file is copied into.
func (r BulkLoadRequest) StagingTable() string {
	return r.Table + StagingTableSuffix
}

// Delimiter returns the field delimiter, defaulting to DefaultFieldDelimiter.
func (r BulkLoadRequest) Delimiter() string {
	if r.FieldsTerminatedBy == "" {
		return DefaultFieldDelimiter
	}
	return r.FieldsTerminatedBy
}

// Quote returns the field enclosure, defaulting to DefaultEnclosure.
func (r BulkLoadRequest) Quote() string {
	if r.EnclosedBy == "" {
		return DefaultEnclosure
	}
	return r.EnclosedBy
}

// Validate checks the request can be executed.
// It returns a multi-error if multiple validation failures occur.
func (r BulkLoadRequest) Validate() error {
	var errs []error

	if r.Table == "" {
		errs = append(errs, fmt.Errorf("bulk load target table is required: %w", ErrInvalidConfig))
	}
	if r.Path == "" {
		errs = append(errs, fmt.Errorf("bulk load file path is required: %w", ErrInvalidConfig))
	}
	if utf8.RuneCountInString(r.FieldsTerminatedBy) > 1 {
		errs = append(errs, fmt.Errorf("multi-character field delimiter %q: %w", r.FieldsTerminatedBy, ErrUnsupportedStatement))
	}
	if utf8.RuneCountInString(r.EnclosedBy) > 1 {
		errs = append(errs, fmt.Errorf("multi-character enclosure %q: %w", r.EnclosedBy, ErrUnsupportedStatement))
	}
	if utf8.RuneCountInString(r.EscapedBy) > 1 {
		errs = append(errs, fmt.Errorf("multi-character escape %q: %w", r.EscapedBy, ErrUnsupportedStatement))
	}
	if r.IgnoreLines < 0 {
		errs = append(errs, fmt.Errorf("negative IGNORE LINES count: %w", ErrInvalidConfig))
	}
	for i, c := range r.Columns {
		if c == "" {
			errs = append(errs, fmt.Errorf("column %d has an empty name: %w", i+1, ErrInvalidConfig))
		}
	}

	return errors.Join(errs...)
}
