package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type beginFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

func beginWith(tx *txStub) beginFunc {
	return func(context.Context) (pgx.Tx, error) { return tx, nil }
}

type txStub struct {
	execErr   error
	execFn    func(sql string, args ...any) (pgconn.CommandTag, error)
	row       pgx.Row
	rows      pgx.Rows
	queryErr  error
	batch     *batchStub
	commitErr error

	committed bool
	queries   []string
	args      [][]any
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *txStub) Rollback(context.Context) error { return nil }
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Conn() *pgx.Conn { return nil }

func (t *txStub) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	if t.batch == nil {
		t.batch = &batchStub{}
	}
	t.batch.queued = b.Len()
	return t.batch
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "set_config") {
		return pgconn.CommandTag{}, t.execErr
	}
	t.queries = append(t.queries, sql)
	t.args = append(t.args, args)
	if t.execFn != nil {
		return t.execFn(sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *txStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.queries = append(t.queries, sql)
	t.args = append(t.args, args)
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if t.rows != nil {
		return t.rows, nil
	}
	return &stubRows{}, nil
}

func (t *txStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.queries = append(t.queries, sql)
	t.args = append(t.args, args)
	if t.row != nil {
		return t.row
	}
	return stubRow{err: errors.New("row not mocked")}
}

type stubRows struct {
	data    [][]any
	idx     int
	scanErr error
	err     error
	closed  bool
}

func (r *stubRows) Close()                        { r.closed = true }
func (r *stubRows) Err() error                    { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assign(dest, r.data[r.idx-1])
}
func (r *stubRows) Values() ([]any, error) { return nil, nil }
func (r *stubRows) RawValues() [][]byte    { return nil }
func (r *stubRows) Conn() *pgx.Conn        { return nil }

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

func assign(dest []any, vals []any) error {
	for i := range dest {
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		switch d := dest[i].(type) {
		case *string:
			*d = vals[i].(string)
		case **string:
			*d = vals[i].(*string)
		case *int:
			*d = vals[i].(int)
		case *bool:
			*d = vals[i].(bool)
		case *[]byte:
			*d = vals[i].([]byte)
		case *time.Time:
			*d = vals[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan dest %T", d)
		}
	}
	return nil
}

type batchStub struct {
	tags     []pgconn.CommandTag
	err      error
	closeErr error
	queued   int
	n        int
}

func (b *batchStub) Exec() (pgconn.CommandTag, error) {
	defer func() { b.n++ }()
	if b.err != nil {
		return pgconn.CommandTag{}, b.err
	}
	if b.n < len(b.tags) {
		return b.tags[b.n], nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (b *batchStub) Query() (pgx.Rows, error) { return &stubRows{}, nil }
func (b *batchStub) QueryRow() pgx.Row        { return stubRow{} }
func (b *batchStub) Close() error             { return b.closeErr }

var fixedTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func menuRow(id string, parent *string, menuType string, order int) []any {
	return []any{
		id, parent, "name-" + id, "", "slug-" + id, "/" + id, "", menuType, order,
		false, false, "", "_self", fixedTime, fixedTime,
	}
}
