package graph

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"golang.org/x/time/rate"

	"github.com/archgraph-io/archgraph/pkg/apperror"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// Row is one raw record returned by a graph query. Values are whatever the
// driver produced; callers are expected to validate and map them at the
// boundary rather than trusting the shape.
type Row map[string]any

// Executor is the sole I/O boundary between the loader subsystem and the
// graph store. Every batched fetch funnels through this one call, which is
// what makes the loader-level coalescing worthwhile.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string, args ...any) ([]Row, error)
}

// BunExecutor runs parameterized graph queries against PostgreSQL through
// bun. Reads are side-effect free; writes go through Repository instead.
type BunExecutor struct {
	db  bun.IDB
	log *slog.Logger

	// Throttles error logging so a failing store doesn't flood the log.
	errLog *rate.Limiter
}

// NewExecutor creates a bun-backed query executor.
func NewExecutor(db bun.IDB, log *slog.Logger) *BunExecutor {
	return &BunExecutor{
		db:     db,
		log:    log.With(logger.Scope("graph.executor")),
		errLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// ExecuteQuery runs one parameterized query and returns all rows, with
// columns keyed by name. Placeholders use bun's `?` syntax; array
// parameters should be passed via pgdialect.Array.
func (e *BunExecutor) ExecuteQuery(ctx context.Context, query string, args ...any) ([]Row, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		if e.errLog.Allow() {
			e.log.Error("graph query failed",
				slog.String("query", query),
				logger.Error(err),
			)
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		if e.errLog.Allow() {
			e.log.Error("graph row scan failed", logger.Error(err))
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if d := time.Since(start); d > 3*time.Second {
		e.log.Warn("slow graph query",
			slog.String("query", query),
			slog.Duration("duration", d),
		)
	} else {
		e.log.Debug("graph query",
			slog.Int("rows", len(out)),
			slog.Duration("duration", time.Since(start)),
		)
	}

	return out, nil
}

// scanRows converts *sql.Rows into generic Rows. Byte slices are copied
// because the driver may reuse its buffers between Next calls.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				cp := make([]byte, len(b))
				copy(cp, b)
				v = cp
			}
			row[col] = v
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
