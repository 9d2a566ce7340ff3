package sqlport

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Driver errors are always wrapped, never replaced, so the underlying
// *pgconn.PgError or *mysql.MySQLError stays reachable through errors.As:
//
//	_, err := adapter.Exec(ctx, stmt)
//	if errors.Is(err, sqlport.ErrTableAlreadyExists) {
//	    // CREATE TABLE raced with another installer
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedStatement indicates a statement looked like a translated
	// instruction (LOCK TABLES, LOAD DATA) but could not be parsed.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrMissingPrimaryKey indicates a bulk load targets a table without a
	// primary key, so there is no conflict target for the upsert.
	ErrMissingPrimaryKey = errors.New("target table has no primary key")

	// ErrTableAlreadyExists indicates CREATE TABLE hit an existing table.
	ErrTableAlreadyExists = errors.New("table already exists")

	// ErrUnknownTable indicates a table name outside the core table catalogue.
	ErrUnknownTable = errors.New("unknown table")

	// ErrServerVersion indicates the database server is older than required.
	ErrServerVersion = errors.New("server version not supported")

	// ErrUnsupportedEngine indicates an engine name other than postgres or mysql,
	// or an operation the selected engine does not provide.
	ErrUnsupportedEngine = errors.New("unsupported engine")

	// ErrApprovalDenied indicates the user denied approval for the operation.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrExecutionFailed indicates SQL execution failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")
)

var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
	"missing required argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrUnsupportedAuthMethod),
		errors.Is(err, ErrUnsupportedEngine):
		return ExitConfigError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrServerVersion):
		return ExitServerVersion
	case errors.Is(err, ErrUnsupportedStatement):
		return ExitUnsupportedStatement
	case errors.Is(err, ErrMissingPrimaryKey),
		errors.Is(err, ErrExecutionFailed):
		return ExitExecutionFailed
	}

	errStr := err.Error()
	for _, p := range usageErrorPatterns {
		if strings.HasPrefix(errStr, p) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
