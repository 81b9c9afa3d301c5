package dbconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// pgConn is the PostgreSQL connection backed by pgxpool.
// Safe for concurrent use by multiple goroutines.
type pgConn struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string) (Conn, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres DSN", err)
	}
	cfg.MaxConns = defaultMaxConns
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}
	return &pgConn{pool: pool}, nil
}

func (c *pgConn) Engine() model.Engine { return model.EnginePostgres }

func (c *pgConn) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return mapPgError(err, "ping failed")
	}
	return nil
}

func (c *pgConn) Close() error {
	c.pool.Close()
	return nil
}

func (c *pgConn) Query(ctx context.Context, sql string, args ...any) (dialect.Rows, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

// pgRows wraps pgx.Rows to satisfy dialect.Rows.
type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Close()                 { r.rows.Close() }

func (r *pgRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapPgError(err, "row iteration failed")
	}
	return nil
}

// mapPgError translates pgx / pgconn native errors into *errs.Error.
func mapPgError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg+": deadline exceeded", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindCatalogQuery
		// Class 08 covers connection exceptions.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			kind = errs.ErrKindConnectionFailed
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Network, TLS, and auth failures surface without a SQLSTATE.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
