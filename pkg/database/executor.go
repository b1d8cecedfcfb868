package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

// Executor runs already-validated SELECT statements under hard per-query
// limits: a statement timeout and a row cap with truncation detection.
// It never retries; errors propagate to the orchestrator.
type Executor struct {
	pool      *pgxpool.Pool
	timeoutMs int
	maxRows   int
	logger    *zap.Logger
}

// NewExecutor wires the executor to a pool. timeoutMs bounds each statement
// server-side; maxRows caps the returned rows.
func NewExecutor(pool *pgxpool.Pool, timeoutMs, maxRows int, logger *zap.Logger) *Executor {
	return &Executor{
		pool:      pool,
		timeoutMs: timeoutMs,
		maxRows:   maxRows,
		logger:    logger.Named("executor"),
	}
}

// ExecuteQuery runs sqlText inside a read-only transaction with a local
// statement timeout. It fetches up to maxRows+1 rows; the extra row only
// signals truncation and is dropped. Rows are positional tuples in the
// declared column order.
func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string) (*models.QueryResult, error) {
	start := time.Now()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.timeoutMs)); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, string(fd.Name))
	}

	result := &models.QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) == e.maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row := make([]any, len(values))
		copy(row, values)
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	e.logger.Info("query executed",
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Float64("elapsed_ms", result.ExecutionTimeMs))
	return result, nil
}
