package dialect

import (
	"fmt"
	"strings"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// Assignment is one "column = EXCLUDED.column" pair of an upsert.
type Assignment struct {
	Column string
}

// Excluded returns the value source of the assignment.
func (a Assignment) Excluded() string {
	return "EXCLUDED." + pgIdent(a.Column)
}

// SQL renders the assignment for an ON CONFLICT ... DO UPDATE SET list.
func (a Assignment) SQL() string {
	return pgIdent(a.Column) + " = " + a.Excluded()
}

// UpsertPlan describes the merge of staged rows into the target table.
type UpsertPlan struct {
	// Columns are inserted in this order.
	Columns []string

	// ConflictKey is the primary key, in index order.
	ConflictKey []string

	// Assignments overwrite every non-key column, in column order.
	Assignments []Assignment

	// DoNothing keeps existing rows on conflict.
	DoNothing bool
}

// NewUpsertPlan plans the merge of columns into a table whose primary key
// is primaryKey. Key columns are never assigned. If nothing is left to
// assign, conflicting rows are kept as they are.
func NewUpsertPlan(columns, primaryKey []string) (UpsertPlan, error) {
	if len(primaryKey) == 0 {
		return UpsertPlan{}, sqlport.ErrMissingPrimaryKey
	}
	if len(columns) == 0 {
		return UpsertPlan{}, fmt.Errorf("upsert requires at least one column: %w", sqlport.ErrInvalidConfig)
	}

	key := make(map[string]struct{}, len(primaryKey))
	for _, k := range primaryKey {
		key[k] = struct{}{}
	}

	plan := UpsertPlan{
		Columns:     append([]string(nil), columns...),
		ConflictKey: append([]string(nil), primaryKey...),
	}
	for _, c := range columns {
		if _, isKey := key[c]; isKey {
			continue
		}
		plan.Assignments = append(plan.Assignments, Assignment{Column: c})
	}
	plan.DoNothing = len(plan.Assignments) == 0
	return plan, nil
}

// WithConflict applies a LOAD DATA duplicate-key policy to the plan.
func (p UpsertPlan) WithConflict(action sqlport.ConflictAction) UpsertPlan {
	if action == sqlport.ConflictIgnore {
		p.DoNothing = true
	}
	return p
}

// MergeSQL renders the INSERT ... SELECT ... ON CONFLICT statement that moves
// rows from source into target. Both names must already be quoted.
func (p UpsertPlan) MergeSQL(target, source string) string {
	cols := pgIdentList(p.Columns)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		target, cols, cols, source, pgIdentList(p.ConflictKey))
	if p.DoNothing {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	for i, a := range p.Assignments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.SQL())
	}
	return b.String()
}

// pgIdent renders name as a double-quoted PostgreSQL identifier.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func pgIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pgIdent(n)
	}
	return strings.Join(quoted, ", ")
}
