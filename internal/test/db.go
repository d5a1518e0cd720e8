package test

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"strings"
	"sync"
	"time"
)

// FakeQuerier records SQL statements and answers them with canned results.
// It satisfies the relational Querier interface.
type FakeQuerier struct {
	mu sync.Mutex

	ExecSQL  []string
	QuerySQL []string

	// FailOn makes any statement containing the substring return Err.
	FailOn string
	Err    error

	// Block makes Exec and QueryRow hang until the context is done.
	Block bool
}

func (f *FakeQuerier) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if f.Block {
		<-ctx.Done()
		return pgconn.CommandTag{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ExecSQL = append(f.ExecSQL, sql)

	if f.FailOn != "" && strings.Contains(sql, f.FailOn) {
		return pgconn.CommandTag{}, f.Err
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *FakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.Block {
		<-ctx.Done()
		return fakeRow{err: ctx.Err()}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.QuerySQL = append(f.QuerySQL, sql)

	if f.FailOn != "" && strings.Contains(sql, f.FailOn) {
		return fakeRow{err: f.Err}
	}

	return fakeRow{args: args}
}

// fakeRow fills each scan target with a placeholder of its type. String
// targets take the first query argument when one is available, which lets a
// SELECT by id echo the id back.
type fakeRow struct {
	args []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			if i == 0 && len(r.args) > 0 {
				if s, ok := r.args[0].(string); ok {
					*v = s
					continue
				}
			}
			*v = "value"
		case *int64:
			*v = 1
		case *float64:
			*v = 1
		case *time.Time:
			*v = time.Now()
		case *bool:
			*v = true
		}
	}

	return nil
}
