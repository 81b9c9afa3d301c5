package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	myErrAccessDenied    = 1045
	myErrUnknownDatabase = 1049
	myErrBadField        = 1054
	myErrTableDenied     = 1142
	myErrConnRefused     = 2003
)

// myConn is the MySQL connection backed by database/sql.
type myConn struct {
	db *sql.DB
}

func openMySQL(dsn string) (Conn, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql DSN", err)
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultConnectTimeout
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open mysql connection", err)
	}
	db.SetMaxOpenConns(defaultMaxConns)
	db.SetConnMaxIdleTime(time.Minute)
	return &myConn{db: db}, nil
}

func (c *myConn) Engine() model.Engine { return model.EngineMySQL }

func (c *myConn) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return mapMySQLError(err, "ping failed")
	}
	return nil
}

func (c *myConn) Close() error { return c.db.Close() }

func (c *myConn) Query(ctx context.Context, query string, args ...any) (dialect.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapMySQLError(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: mapMySQLError}, nil
}

// mapMySQLError converts a MySQL driver error into *errs.Error.
func mapMySQLError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg+": deadline exceeded", err)
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myErrAccessDenied, myErrConnRefused, myErrUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed,
				fmt.Sprintf("%s: %s", msg, myErr.Message), err)
		case myErrBadField, myErrTableDenied:
			return errs.Wrap(errs.ErrKindCatalogQuery,
				fmt.Sprintf("%s: %s", msg, myErr.Message), err)
		}
		return errs.Wrap(errs.ErrKindCatalogQuery,
			fmt.Sprintf("%s: %s", msg, myErr.Message), err)
	}
	if errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
