package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// liteConn is the SQLite connection backed by database/sql over the pure-Go
// modernc driver. SQLite serialises writers itself; a single open connection
// avoids lock contention on file databases.
type liteConn struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, dsn string) (Conn, error) {
	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dsn))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid sqlite DSN", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, mapSQLiteError(err, "enable foreign keys")
	}
	return &liteConn{db: db}, nil
}

// normalizeSQLiteDSN accepts plain file paths, file: URIs, and the
// conventional :memory: spelling.
func normalizeSQLiteDSN(dsn string) string {
	if dsn == ":memory:" {
		return "file::memory:?cache=shared"
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn
}

func (c *liteConn) Engine() model.Engine { return model.EngineSQLite }

func (c *liteConn) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return mapSQLiteError(err, "ping failed")
	}
	return nil
}

func (c *liteConn) Close() error { return c.db.Close() }

func (c *liteConn) Query(ctx context.Context, query string, args ...any) (dialect.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: mapSQLiteError}, nil
}

// mapSQLiteError converts a sqlite driver error into *errs.Error.
// The modernc driver has no rich error type; classification is limited to
// the context sentinels, with everything else treated as a catalog failure.
func mapSQLiteError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg+": deadline exceeded", err)
	}
	if strings.Contains(err.Error(), "unable to open database") {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindCatalogQuery, msg, err)
}
