// Package dialecttest provides an in-memory Querier for adapter and
// orchestrator tests. Stubs are matched by substring against the query text,
// so tests pin the catalog tables they expect a query to touch without
// asserting exact SQL.
package dialecttest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
)

// Stub pairs a query fingerprint with the rows (or error) to return.
type Stub struct {
	// Match is a substring of the query text. The first stub whose Match
	// appears in the query wins.
	Match string

	// Rows are returned one per Next/Scan cycle. Each inner slice holds the
	// column values in select order.
	Rows [][]any

	// Err, when set, is returned from Query instead of rows.
	Err error
}

// FakeQuerier implements dialect.Querier against a fixed stub table.
type FakeQuerier struct {
	mu    sync.Mutex
	Stubs []Stub

	// Queries records every query text received, for order assertions.
	Queries []string
}

// Query matches the query text against the stubs in order.
// A query no stub matches is an error: the test forgot a fixture.
func (f *FakeQuerier) Query(ctx context.Context, q string, args ...any) (dialect.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.Queries = append(f.Queries, q)
	f.mu.Unlock()
	for _, s := range f.Stubs {
		if strings.Contains(q, s.Match) {
			if s.Err != nil {
				return nil, s.Err
			}
			return &fakeRows{rows: s.Rows}, nil
		}
	}
	return nil, fmt.Errorf("no stub matches query: %s", q)
}

type fakeRows struct {
	rows [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return r.err }

func assign(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		switch s := src.(type) {
		case string:
			*d = s
		case nil:
			*d = ""
		default:
			return fmt.Errorf("cannot assign %T to *string", src)
		}
	case *int:
		switch s := src.(type) {
		case int:
			*d = s
		case int64:
			*d = int(s)
		default:
			return fmt.Errorf("cannot assign %T to *int", src)
		}
	case *int64:
		switch s := src.(type) {
		case int:
			*d = int64(s)
		case int64:
			*d = s
		default:
			return fmt.Errorf("cannot assign %T to *int64", src)
		}
	case *bool:
		switch s := src.(type) {
		case bool:
			*d = s
		case int:
			*d = s != 0
		case int64:
			*d = s != 0
		default:
			return fmt.Errorf("cannot assign %T to *bool", src)
		}
	case *float64:
		switch s := src.(type) {
		case float64:
			*d = s
		case int:
			*d = float64(s)
		default:
			return fmt.Errorf("cannot assign %T to *float64", src)
		}
	case *sql.NullString:
		switch s := src.(type) {
		case string:
			*d = sql.NullString{String: s, Valid: true}
		case nil:
			*d = sql.NullString{}
		default:
			return fmt.Errorf("cannot assign %T to *sql.NullString", src)
		}
	case *sql.NullInt64:
		switch s := src.(type) {
		case int:
			*d = sql.NullInt64{Int64: int64(s), Valid: true}
		case int64:
			*d = sql.NullInt64{Int64: s, Valid: true}
		case nil:
			*d = sql.NullInt64{}
		default:
			return fmt.Errorf("cannot assign %T to *sql.NullInt64", src)
		}
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}
	return nil
}
