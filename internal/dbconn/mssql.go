package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// SQL Server error numbers
// Full list: https://learn.microsoft.com/sql/relational-databases/errors-events/
const (
	msErrLoginFailed    = 18456
	msErrInvalidObject  = 208
	msErrPermDenied     = 229
	msErrSelectDenied   = 230
)

// msConn is the SQL Server connection backed by database/sql over go-mssqldb.
type msConn struct {
	db *sql.DB
}

func openSQLServer(dsn string) (Conn, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid sqlserver DSN", err)
	}
	db.SetMaxOpenConns(defaultMaxConns)
	db.SetConnMaxIdleTime(time.Minute)
	return &msConn{db: db}, nil
}

func (c *msConn) Engine() model.Engine { return model.EngineSQLServer }

func (c *msConn) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return mapMSSQLError(err, "ping failed")
	}
	return nil
}

func (c *msConn) Close() error { return c.db.Close() }

func (c *msConn) Query(ctx context.Context, query string, args ...any) (dialect.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapMSSQLError(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: mapMSSQLError}, nil
}

// mapMSSQLError converts a go-mssqldb error into *errs.Error.
func mapMSSQLError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg+": deadline exceeded", err)
	}

	var msErr mssqldb.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case msErrLoginFailed:
			return errs.Wrap(errs.ErrKindConnectionFailed,
				fmt.Sprintf("%s: %s", msg, msErr.Message), err)
		case msErrInvalidObject, msErrPermDenied, msErrSelectDenied:
			return errs.Wrap(errs.ErrKindCatalogQuery,
				fmt.Sprintf("%s: %s", msg, msErr.Message), err)
		}
		return errs.Wrap(errs.ErrKindCatalogQuery,
			fmt.Sprintf("%s: %s", msg, msErr.Message), err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
