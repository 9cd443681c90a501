package dbconn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeRow returns canned scan values or an error.
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			break
		}
		switch v := r.values[i].(type) {
		case bool:
			*(d.(*bool)) = v
		case int:
			*(d.(*int)) = v
		}
	}
	return nil
}

// fakeDatabase records calls and serves scripted responses.
type fakeDatabase struct {
	mu       sync.Mutex
	pingErr  error
	row      *fakeRow
	execErr  error
	queries  []string
	execs    []string
	args     [][]any
	closed   bool
	pingWait time.Duration
}

func (f *fakeDatabase) PingContext(ctx context.Context) error {
	if f.pingWait > 0 {
		select {
		case <-time.After(f.pingWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.pingErr
}

func (f *fakeDatabase) QueryRowContext(_ context.Context, query string, args ...any) Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.row != nil {
		return f.row
	}
	return &fakeRow{}
}

func (f *fakeDatabase) ExecContext(_ context.Context, query string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, query)
	return f.execErr
}

func (f *fakeDatabase) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// scriptedOpener returns one fakeDatabase per open call, cycling through
// the script. The last entry repeats.
type scriptedOpener struct {
	mu    sync.Mutex
	dbs   []*fakeDatabase
	opens int
}

func (s *scriptedOpener) open(string, string) (Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.opens
	if i >= len(s.dbs) {
		i = len(s.dbs) - 1
	}
	s.opens++
	return s.dbs[i], nil
}

func testConnector(t *testing.T, opener Opener, opts ...Option) *Connector {
	t.Helper()
	base := []Option{
		WithOpener(opener),
		WithBackoff(time.Millisecond),
	}
	return NewConnector(zerolog.Nop(), append(base, opts...)...)
}

func TestConnectorSucceedsFirstAttempt(t *testing.T) {
	opener := &scriptedOpener{dbs: []*fakeDatabase{{}}}
	c := testConnector(t, opener.open)

	if err := c.TestConnection(context.Background(), EnginePostgres, "postgresql://u:p@h/db", time.Second); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if opener.opens != 1 {
		t.Errorf("opens = %d, want 1", opener.opens)
	}
	if !opener.dbs[0].closed {
		t.Error("database handle not closed")
	}
}

func TestConnectorRetriesAndRecovers(t *testing.T) {
	opener := &scriptedOpener{dbs: []*fakeDatabase{
		{pingErr: errors.New("refused")},
		{pingErr: errors.New("refused")},
		{},
	}}
	var retries int
	c := testConnector(t, opener.open, WithRetryHook(func(Engine) { retries++ }))

	if err := c.TestConnection(context.Background(), EngineSQLServer, "sqlserver://sa:p@h", time.Second); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if opener.opens != 3 {
		t.Errorf("opens = %d, want 3", opener.opens)
	}
	if retries != 2 {
		t.Errorf("retry hook fired %d times, want 2", retries)
	}
}

func TestConnectorAttemptsAreBounded(t *testing.T) {
	opener := &scriptedOpener{dbs: []*fakeDatabase{{pingErr: errors.New("refused")}}}
	c := testConnector(t, opener.open, WithMaxAttempts(2))

	err := c.TestConnection(context.Background(), EngineMySQL, "root:s3cret@tcp(h:3306)/db", time.Second)
	if err == nil {
		t.Fatal("expected failure after retry exhaustion")
	}
	if opener.opens != 2 {
		t.Errorf("opens = %d, want 2", opener.opens)
	}
	if strings.Contains(err.Error(), "s3cret") {
		t.Errorf("error leaks the secret: %v", err)
	}
}

func TestConnectorHonorsTimeout(t *testing.T) {
	opener := &scriptedOpener{dbs: []*fakeDatabase{{pingWait: time.Second, pingErr: errors.New("slow")}}}
	c := testConnector(t, opener.open)

	start := time.Now()
	err := c.TestConnection(context.Background(), EnginePostgres, "postgresql://u:p@h/db", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not honored, took %v", elapsed)
	}
}

func TestConnectorRejectsUnknownEngine(t *testing.T) {
	c := testConnector(t, (&scriptedOpener{dbs: []*fakeDatabase{{}}}).open)
	if err := c.TestConnection(context.Background(), Engine("oracle"), "x", time.Second); err == nil {
		t.Error("expected engine validation error")
	}
}
