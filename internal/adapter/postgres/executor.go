package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/paddock/internal/port/database"
)

// Executor runs approved templates on the pool.
type Executor struct {
	pool *pgxpool.Pool
}

// NewExecutor creates an Executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs sql with positional params and returns rows keyed by column.
func (e *Executor) Execute(ctx context.Context, sql string, params []any) ([]database.Row, error) {
	rows, err := e.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]database.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(database.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return out, nil
}

// Ping checks pool connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}
