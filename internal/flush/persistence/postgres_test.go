package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
)

type fakeDB struct {
	execs         []string
	failBegin     error
	failCommit    error
	failExecAt    map[int]error
	commitCount   int
	rollbackCount int
}

type fakeDriver struct{}
type fakeConn struct{ db *fakeDB }
type fakeTx struct {
	db     *fakeDB
	closed bool
}
type fakeResult int

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{db: testPGFakeDB}, nil }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not supported")
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}
func (c *fakeConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.db.failBegin != nil {
		return nil, c.db.failBegin
	}
	return &fakeTx{db: c.db}, nil
}
func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.execs = append(c.db.execs, query)
	idx := len(c.db.execs)
	if c.db.failExecAt != nil {
		if err, ok := c.db.failExecAt[idx]; ok {
			return nil, err
		}
	}
	return fakeResult(1), nil
}

func (t *fakeTx) Commit() error {
	if t.closed {
		return errors.New("already closed")
	}
	t.db.commitCount++
	t.closed = true
	return t.db.failCommit
}
func (t *fakeTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.db.rollbackCount++
	t.closed = true
	return nil
}

var testPGFakeDB *fakeDB

func init() {
	sql.Register("flushfakesql", fakeDriver{})
}

func newFakePostgresDB(db *fakeDB) *sql.DB {
	testPGFakeDB = db
	d, _ := sql.Open("flushfakesql", "")
	return d
}

func TestPostgresPersister_Empty(t *testing.T) {
	db := newFakePostgresDB(&fakeDB{})
	p := NewPostgresPersister(db, false)
	if err := p.FlushBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestPostgresPersister_MissingFlushID_RollsBack(t *testing.T) {
	f := &fakeDB{}
	db := newFakePostgresDB(f)
	p := NewPostgresPersister(db, false)
	err := p.FlushBatch(context.Background(), []FlushEntry{{Handler: "h", Target: "a"}})
	if err == nil || err.Error() != "FlushEntry.FlushID must be set" {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.rollbackCount != 1 {
		t.Fatalf("expected rollback=1, got %d", f.rollbackCount)
	}
	if f.commitCount != 0 {
		t.Fatalf("expected commit=0")
	}
}

func TestPostgresPersister_CreateMissingRows_AndApply(t *testing.T) {
	f := &fakeDB{}
	db := newFakePostgresDB(f)
	p := NewPostgresPersister(db, true)
	entries := []FlushEntry{{Handler: "h1", Target: "t1", Serial: 5, FlushID: "f1"}, {Handler: "h2", Target: "t2", Serial: 2, FlushID: "f2"}}
	if err := p.FlushBatch(context.Background(), entries); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if f.commitCount != 1 || f.rollbackCount != 0 {
		t.Fatalf("commit/rollback mismatch: %d/%d", f.commitCount, f.rollbackCount)
	}
	var hasApplied, hasUpdate bool
	for _, q := range f.execs {
		if strings.Contains(q, "INSERT INTO applied_flushes") {
			hasApplied = true
		}
		if strings.Contains(q, "UPDATE flush_targets SET flushed_serial") {
			hasUpdate = true
		}
	}
	if !hasApplied || !hasUpdate {
		t.Fatalf("expected both applied_flushes and flush_targets update queries: %v", f.execs)
	}
}

func TestPostgresPersister_FencingToken_Update(t *testing.T) {
	f := &fakeDB{}
	db := newFakePostgresDB(f)
	p := NewPostgresPersister(db, false)
	ft := int64(99)
	if err := p.FlushBatch(context.Background(), []FlushEntry{{Handler: "h", Target: "t", Serial: 1, FlushID: "c", FencingToken: &ft}}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	found := false
	for _, q := range f.execs {
		if strings.Contains(q, "UPDATE flush_targets SET last_token") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected last_token update, got: %v", f.execs)
	}
}

func TestPostgresPersister_ExecError_Rollback(t *testing.T) {
	f := &fakeDB{failExecAt: map[int]error{1: errors.New("boom")}}
	db := newFakePostgresDB(f)
	p := NewPostgresPersister(db, true)
	err := p.FlushBatch(context.Background(), []FlushEntry{{Handler: "h", Target: "t", Serial: 1, FlushID: "c"}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected err: %v", err)
	}
	if f.rollbackCount != 1 || f.commitCount != 0 {
		t.Fatalf("expected rollback only, got c=%d r=%d", f.commitCount, f.rollbackCount)
	}
}

func TestPostgresPersister_CommitError(t *testing.T) {
	f := &fakeDB{failCommit: errors.New("commit-fail")}
	db := newFakePostgresDB(f)
	p := NewPostgresPersister(db, false)
	err := p.FlushBatch(context.Background(), []FlushEntry{{Handler: "h", Target: "t", Serial: 1, FlushID: "c"}})
	if err == nil || err.Error() != "commit-fail" {
		t.Fatalf("unexpected err: %v", err)
	}
}
