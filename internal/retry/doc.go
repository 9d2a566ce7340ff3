// Package retry re-runs database operations that failed for transient reasons.
//
// Three classifiers decide what is transient:
//
//   - PostgreSQLErrorClassifier: connection establishment (network errors,
//     class 08/53/57 server codes, serialization failures)
//   - StatementClassifier: a statement or transaction that the server rolled
//     back on its own (serialization failure, deadlock, lock timeout), which is
//     safe to replay from the start
//   - MySQLErrorClassifier: the MySQL equivalents of the statement case
//
//	executor := retry.NewExecutor(retry.NewStatementClassifier(), retry.NewExponentialBackoff(3))
//	n, err := retry.Do(ctx, executor, func(ctx context.Context) (int64, error) {
//	    return runBulkLoad(ctx)
//	})
//
// Executor instances are safe for concurrent use. WithOnRetry returns a copy.
package retry
