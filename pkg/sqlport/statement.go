package sqlport

import "fmt"

// StatementKind identifies how the executor routes a statement.
type StatementKind int

const (
	// KindPlain is executed after identifier quote rewriting.
	KindPlain StatementKind = iota
	// KindLock is a LOCK TABLES or UNLOCK TABLES instruction.
	KindLock
	// KindBulkLoad is a LOAD DATA ... INFILE instruction.
	KindBulkLoad
)

// String returns a human-readable string representation of the StatementKind.
func (k StatementKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindLock:
		return "lock"
	case KindBulkLoad:
		return "bulk-load"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Statement is a classified statement ready for execution. The set of
// variants is closed: PlainStatement, LockStatement and BulkLoadRequest.
type Statement interface {
	Kind() StatementKind
	statement()
}

// PlainStatement is passed to the server after identifier quote rewriting.
type PlainStatement struct {
	SQL string
}

// Kind implements Statement.
func (PlainStatement) Kind() StatementKind { return KindPlain }
func (PlainStatement) statement()          {}

// LockStatement is a table lock instruction. PostgreSQL runs every
// statement under MVCC, so the executor acknowledges it without
// contacting the server.
type LockStatement struct {
	SQL    string
	Unlock bool
}

// Kind implements Statement.
func (LockStatement) Kind() StatementKind { return KindLock }
func (LockStatement) statement()          {}
