package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"videojobs/internal/infra"
)

type call struct {
	query string
	args  []any
}

// stubSQL answers QueryRow by query constant and records every statement.
type stubSQL struct {
	rows    map[string][]func(dest ...any) error
	sets    map[string][][]any
	execTag map[string]pgconn.CommandTag
	execErr map[string]error
	calls   []call
	txs     int
}

func newStubSQL() *stubSQL {
	return &stubSQL{
		rows:    make(map[string][]func(dest ...any) error),
		sets:    make(map[string][][]any),
		execTag: make(map[string]pgconn.CommandTag),
		execErr: make(map[string]error),
	}
}

// onRow queues a scan result for the next QueryRow of query.
func (s *stubSQL) onRow(query string, values ...any) {
	s.rows[query] = append(s.rows[query], func(dest ...any) error {
		if len(dest) != len(values) {
			return fmt.Errorf("scan: got %d dest, want %d", len(dest), len(values))
		}
		assign(dest, values)
		return nil
	})
}

// onRows sets the result rows returned by Query for query.
func (s *stubSQL) onRows(query string, rows ...[]any) {
	s.sets[query] = rows
}

func assign(dest, values []any) {
	for i, v := range values {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
}

func (s *stubSQL) onRowErr(query string, err error) {
	s.rows[query] = append(s.rows[query], func(...any) error { return err })
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	return s.execTag[query], s.execErr[query]
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	queue := s.rows[query]
	if len(queue) == 0 {
		return stubRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}
	s.rows[query] = queue[1:]
	return stubRow{scan: queue[0]}
}

func (s *stubSQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	set, ok := s.sets[query]
	if !ok {
		return nil, errors.New("not implemented")
	}
	return &stubRows{values: set, pos: -1}, nil
}

func (s *stubSQL) InTx(ctx context.Context, fn func(tx infra.SQLExecutor) error) error {
	s.txs++
	return fn(s)
}

func (s *stubSQL) executed(query string) []call {
	var out []call
	for _, c := range s.calls {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

// stubRows implements pgx.Rows over fixed values.
type stubRows struct {
	values [][]any
	pos    int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.pos++
	return r.pos < len(r.values)
}

func (r *stubRows) Scan(dest ...any) error {
	values := r.values[r.pos]
	if len(dest) != len(values) {
		return fmt.Errorf("scan: got %d dest, want %d", len(dest), len(values))
	}
	assign(dest, values)
	return nil
}

func (r *stubRows) Values() ([]any, error) { return r.values[r.pos], nil }

func jobRowValues(id, status string) []any {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{
		id,
		"acct-1",
		[]byte(`[{"kind":"image","ref":"mem://a.png"}]`),
		[]byte(`{"quality":"high","speed":1.5,"voice":"male","language":"fr","duration_seconds":45}`),
		int64(2048),
		status,
		"",
		int64(0),
		"",
		"",
		false,
		created,
		created,
		nil,
		nil,
		2,
		"",
	}
}
