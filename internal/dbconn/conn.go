// Package dbconn opens live connections to the supported engines and adapts
// each native driver to the dialect.Querier contract.
//
// Each driver maps its native error values into the unified errs taxonomy, so
// the orchestrator never needs to import pgconn, go-sql-driver, go-mssqldb,
// or the sqlite driver directly.
package dbconn

import (
	"context"
	"database/sql"
	"time"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

const (
	defaultMaxConns       = 10
	defaultConnectTimeout = 5 * time.Second
)

// Conn is a live, pooled connection to one database. It satisfies
// dialect.Querier so it can be handed straight to an adapter.
type Conn interface {
	dialect.Querier

	// Engine identifies the backend this connection talks to.
	Engine() model.Engine

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close drains the pool. Call when the application shuts down.
	Close() error
}

// Open connects to the engine identified by the tag using the given DSN.
// It pings before returning; a connection that cannot be validated is closed
// and reported as ErrKindConnectionFailed.
func Open(ctx context.Context, engine model.Engine, dsn string) (Conn, error) {
	var (
		c   Conn
		err error
	)
	switch engine {
	case model.EnginePostgres:
		c, err = openPostgres(ctx, dsn)
	case model.EngineMySQL:
		c, err = openMySQL(dsn)
	case model.EngineSQLServer:
		c, err = openSQLServer(dsn)
	case model.EngineSQLite:
		c, err = openSQLite(ctx, dsn)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown engine %q", engine)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// --- database/sql shared plumbing ---

// sqlRows adapts *sql.Rows to dialect.Rows, running iteration errors through
// the driver's error mapper.
type sqlRows struct {
	rows   *sql.Rows
	mapErr func(error, string) error
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.mapErr(err, "row iteration failed")
	}
	return nil
}
