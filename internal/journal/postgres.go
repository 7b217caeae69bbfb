package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ko0hi/papertrade/internal/engine"
)

const executionsSchema = `
CREATE TABLE IF NOT EXISTS executions (
	id          uuid PRIMARY KEY,
	symbol      text NOT NULL,
	side        text NOT NULL,
	price       numeric NOT NULL,
	size        numeric NOT NULL,
	fee         numeric NOT NULL,
	executed_at timestamptz NOT NULL
)`

const insertExecution = `
INSERT INTO executions (id, symbol, side, price, size, fee, executed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

// Postgres journals fills into a single executions table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("journal pool: %w", err)
	}
	if _, err := pool.Exec(ctx, executionsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) RecordExecution(ctx context.Context, e engine.Execution) error {
	// decimals go over the wire as text, postgres parses them into numeric
	_, err := p.pool.Exec(ctx, insertExecution,
		e.ID,
		e.Symbol,
		string(e.Side),
		e.Price.String(),
		e.Size.String(),
		e.Fee.String(),
		e.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", e.ID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
