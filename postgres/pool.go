package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lzap/qctask"
)

// Querier is the part of pgx used by the repository. Both pgx.Conn and pgxpool.Pool implement it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool delegates all query functions to a connection pool.
type Pool interface {
	Querier

	Close()
}

// Connect opens a pgxpool.Pool for the given connection URL and checks it is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, qctask.ErrCreateClient.Context(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, qctask.ErrCreateClient.Context(err)
	}
	return pool, nil
}
