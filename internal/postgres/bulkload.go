package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/sqlport/internal/datafile"
	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func newLoadID() string {
	return uuid.NewString()[:8]
}

// bulkLoad is one LOAD DATA emulation in progress.
type bulkLoad struct {
	id      string
	req     sqlport.BulkLoadRequest
	target  string
	staging string
}

func newBulkLoad(id string, req sqlport.BulkLoadRequest) *bulkLoad {
	return &bulkLoad{
		id:      id,
		req:     req,
		target:  pgx.Identifier{req.Table}.Sanitize(),
		staging: pgx.Identifier{"pg_temp", req.StagingTable()}.Sanitize(),
	}
}

// BulkLoad emulates LOAD DATA INFILE: the file is copied into a temporary
// staging table shaped like req.Table and merged into it with
// INSERT ... ON CONFLICT on the primary key. It returns the merge's
// affected row count.
//
// By default the sequence runs in one transaction and is replayed when the
// server aborts it for a serialization failure or deadlock.
func (a *Adapter) BulkLoad(ctx context.Context, req sqlport.BulkLoadRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if err := checkCopyable(req); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	load := newBulkLoad(a.newID(), req)
	a.logger.Info("bulk load %s: %s into %s", load.id, req.Path, req.Table)

	var (
		n   int64
		err error
	)
	if a.bulkOpts.Transactional {
		n, err = retry.Do(ctx, a.retry, func(ctx context.Context) (int64, error) {
			return a.loadInTx(ctx, load)
		})
	} else {
		n, err = a.load(ctx, a.conn, load)
	}
	if err != nil {
		a.logger.Error("bulk load %s failed: %v", load.id, err)
		return 0, fmt.Errorf("bulk load into %s: %w", req.Table, err)
	}

	a.logger.Info("bulk load %s: %d rows merged", load.id, n)
	return n, nil
}

func (a *Adapter) loadInTx(ctx context.Context, load *bulkLoad) (int64, error) {
	tx, err := a.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", wrapExecError(err, "BEGIN"))
	}

	n, err := a.load(ctx, tx, load)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			a.logger.Verbose("bulk load %s: rollback: %v", load.id, rbErr)
		}
		// The rollback discards a staging table created in the transaction;
		// this covers one left behind by a failure outside it.
		if _, dropErr := a.conn.Exec(ctx, load.dropSQL()); dropErr != nil {
			a.logger.Verbose("bulk load %s: drop staging table: %v", load.id, dropErr)
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", wrapExecError(err, "COMMIT"))
	}
	return n, nil
}

// load runs the staging sequence on q. The staging table is dropped on
// every exit path; a drop failure is reported only if the load succeeded.
func (a *Adapter) load(ctx context.Context, q sqlport.Querier, load *bulkLoad) (n int64, err error) {
	req := load.req

	columns := req.Columns
	if len(columns) == 0 {
		if columns, err = tableColumns(ctx, q, req.Table); err != nil {
			return 0, err
		}
	}

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE 1=0", load.staging, load.target)
	a.logger.Verbose("bulk load %s: %s", load.id, createSQL)
	if _, err := q.Exec(ctx, createSQL); err != nil {
		return 0, wrapExecError(err, createSQL)
	}
	defer func() {
		if _, dropErr := q.Exec(ctx, load.dropSQL()); dropErr != nil && err == nil {
			err = wrapExecError(dropErr, load.dropSQL())
		}
	}()

	pk, err := primaryKeyColumns(ctx, q, req.Table)
	if err != nil {
		return 0, err
	}
	plan, err := dialect.NewUpsertPlan(columns, pk)
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", req.Table, err)
	}
	plan = plan.WithConflict(req.OnConflict)

	copied, err := a.copyIntoStaging(ctx, q, load, columns)
	if err != nil {
		return 0, err
	}
	a.logger.Verbose("bulk load %s: %d rows staged", load.id, copied)

	mergeSQL := plan.MergeSQL(load.target, load.staging)
	a.logger.Verbose("bulk load %s: %s", load.id, mergeSQL)
	tag, err := q.Exec(ctx, mergeSQL)
	if err != nil {
		return 0, wrapExecError(err, mergeSQL)
	}
	return tag.RowsAffected(), nil
}

// copyIntoStaging streams a LOCAL file through COPY FROM STDIN, or asks the
// server to read the file itself.
func (a *Adapter) copyIntoStaging(ctx context.Context, q sqlport.Querier, load *bulkLoad, columns []string) (int64, error) {
	req := load.req

	if !req.Local {
		copySQL := newCopySpec(load.staging, columns, req, false).SQL()
		a.logger.Verbose("bulk load %s: %s", load.id, copySQL)
		tag, err := q.Exec(ctx, copySQL)
		if err != nil {
			return 0, wrapExecError(err, copySQL)
		}
		return tag.RowsAffected(), nil
	}

	f, err := datafile.Open(req.Path, datafile.Options{
		CharacterSet:   req.CharacterSet,
		SkipLines:      req.IgnoreLines,
		LineTerminator: req.LinesTerminatedBy,
	})
	if err != nil {
		return 0, err
	}
	defer f.Close()

	copySQL := newCopySpec(load.staging, columns, req, f.Transcoded).SQL()
	a.logger.Verbose("bulk load %s: %s", load.id, copySQL)
	tag, err := q.CopyFrom(ctx, f, copySQL)
	if err != nil {
		return 0, wrapExecError(err, copySQL)
	}
	return tag.RowsAffected(), nil
}

func (l *bulkLoad) dropSQL() string {
	return "DROP TABLE IF EXISTS " + l.staging
}
