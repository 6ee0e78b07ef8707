package postgres_test

import (
	"context"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Fake transaction ---

type execCall struct {
	sql  string
	args []any
}

// fakeTx records statements. Methods not overridden panic through the nil
// embedded interface, which flags unexpected driver use.
type fakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	execs      []execCall
	setErr     error  // returned by set_config
	tag        string // command tag for other statements
	regclass   bool   // result of the to_regclass lookup
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if strings.Contains(sql, "set_config") {
		if f.setErr != nil {
			return pgconn.CommandTag{}, f.setErr
		}
		return pgconn.NewCommandTag("SELECT 1"), nil
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return boolRow{v: f.regclass}
}

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rolledBack {
		return pgx.ErrTxClosed
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

func (f *fakeTx) calls() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.execs...)
}

type boolRow struct{ v bool }

func (r boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.v
	return nil
}

// --- Fake pool ---

type fakeBeginner struct {
	mu       sync.Mutex
	txs      []*fakeTx
	beginErr error
	newTx    func() *fakeTx
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.beginErr != nil {
		return nil, b.beginErr
	}
	tx := &fakeTx{tag: "SELECT 0"}
	if b.newTx != nil {
		tx = b.newTx()
	}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func (b *fakeBeginner) begun() []*fakeTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeTx(nil), b.txs...)
}
