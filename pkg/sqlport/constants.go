package sqlport

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess              = 0  // Command completed successfully
	ExitGeneralError         = 1  // Unknown or unclassified error
	ExitUsageError           = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic                = 3  // Internal panic (unexpected crash)
	ExitConfigError          = 10 // Invalid configuration or parameters
	ExitConnectionError      = 11 // Failed to connect to database
	ExitApprovalDenied       = 12 // User denied a destructive operation
	ExitExecutionFailed      = 13 // SQL execution failed
	ExitUnsupportedStatement = 14 // Statement could not be translated
	ExitServerVersion        = 15 // Server older than the configured minimum
)

const (
	// DefaultPostgresPort is the port used when a PostgreSQL connection omits one.
	DefaultPostgresPort = 5432

	// DefaultMySQLPort is the port used when a MySQL connection omits one.
	DefaultMySQLPort = 3306

	// DefaultMinimumServerVersion is the oldest PostgreSQL release with
	// INSERT ... ON CONFLICT, which the bulk-load merge depends on.
	DefaultMinimumServerVersion = "9.5"

	// DefaultMySQLMinimumServerVersion is the oldest MySQL release the
	// application schema supports.
	DefaultMySQLMinimumServerVersion = "5.5"

	// StagingTableSuffix is appended to the target table name to form the
	// bulk-load staging table.
	StagingTableSuffix = "_tmp"

	// DefaultFieldDelimiter is used when LOAD DATA has no FIELDS TERMINATED BY clause.
	DefaultFieldDelimiter = ","

	// DefaultEnclosure is the CSV quote character used when LOAD DATA has no
	// usable ENCLOSED BY clause.
	DefaultEnclosure = `"`

	// MySQLNullMarker is the NULL representation MySQL writes into data files
	// when the escape character is a backslash.
	MySQLNullMarker = `\N`

	// DefaultForceApprovalCountdown is the countdown duration before force approval proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// MaxErrorPreviewLength is the maximum number of characters of a failed
	// statement shown in error messages.
	MaxErrorPreviewLength = 200

	// DefaultManagementDB is the default database to connect to for management operations.
	DefaultManagementDB = "postgres"

	// DefaultTablePrefix is the table prefix of a stock installation.
	DefaultTablePrefix = "piwik_"
)
