package resources

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DBInstance = (*pgxpool.Pool)(nil)
	_ Closable   = (*pgxpool.Pool)(nil)
	_ Closable   = CloseFn(nil)
)

// DBInstance is the part of a pgx pool the application relies on.
type DBInstance interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Closable interface {
	Close()
}

// CloseFn adapts a plain function to Closable.
type CloseFn func()

func (fn CloseFn) Close() {
	fn()
}

// StopFn releases a resource, giving up once ctx is done.
type StopFn func(ctx context.Context) error
