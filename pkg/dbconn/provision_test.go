package dbconn

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestValidateDatabaseName(t *testing.T) {
	valid := []string{"app", "App_2024", "_staging"}
	for _, name := range valid {
		if err := ValidateDatabaseName(name); err != nil {
			t.Errorf("ValidateDatabaseName(%q): %v", name, err)
		}
	}

	invalid := []string{"", "1app", "app;DROP TABLE x", "app db", "app-db", strings.Repeat("a", 64)}
	for _, name := range invalid {
		if err := ValidateDatabaseName(name); err == nil {
			t.Errorf("ValidateDatabaseName(%q): expected error", name)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		engine Engine
		name   string
		want   string
	}{
		{EnginePostgres, "app", `"app"`},
		{EnginePostgres, `we"ird`, `"we""ird"`},
		{EngineSQLServer, "app", "[app]"},
		{EngineSQLServer, "we]ird", "[we]]ird]"},
		{EngineMySQL, "app", "`app`"},
		{EngineMySQL, "we`ird", "`we``ird`"},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.engine, tt.name); got != tt.want {
			t.Errorf("QuoteIdentifier(%s, %q) = %q, want %q", tt.engine, tt.name, got, tt.want)
		}
	}
}

func TestCreateDatabaseStatements(t *testing.T) {
	stmts := createDatabaseStatements(EngineSQLServer, "app", Sizing{InitialMB: 100, MaxMB: 1024, GrowthMB: 64})
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if stmts[0] != "CREATE DATABASE [app]" {
		t.Errorf("create statement = %q", stmts[0])
	}
	for _, want := range []string{"SIZE = 100MB", "MAXSIZE = 1024MB", "FILEGROWTH = 64MB"} {
		if !strings.Contains(stmts[1], want) {
			t.Errorf("sizing statement %q missing %q", stmts[1], want)
		}
	}

	// Postgres and MySQL have no sizing equivalent: single statement.
	for _, e := range []Engine{EnginePostgres, EngineMySQL} {
		stmts := createDatabaseStatements(e, "app", Sizing{InitialMB: 100})
		if len(stmts) != 1 {
			t.Errorf("%s: expected 1 statement, got %v", e, stmts)
		}
	}
}

func TestCreateDatabaseRejectsUnsafeName(t *testing.T) {
	opener := &scriptedOpener{dbs: []*fakeDatabase{{}}}
	c := NewConnector(zerolog.Nop(), WithOpener(opener.open))

	err := c.CreateDatabase(context.Background(), EnginePostgres, "postgresql://u:p@h/postgres", "app;DROP DATABASE x", Sizing{})
	if err == nil {
		t.Fatal("expected validation error for unsafe name")
	}
	if opener.opens != 0 {
		t.Error("no connection must be opened for an invalid name")
	}
}

func TestCreateDatabaseExecutesDDL(t *testing.T) {
	db := &fakeDatabase{}
	opener := &scriptedOpener{dbs: []*fakeDatabase{db}}
	c := NewConnector(zerolog.Nop(), WithOpener(opener.open))

	if err := c.CreateDatabase(context.Background(), EngineMySQL, "root:p@tcp(h)/", "app", Sizing{}); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 1 || db.execs[0] != "CREATE DATABASE `app`" {
		t.Errorf("execs = %v", db.execs)
	}
}

func TestExistsBindsName(t *testing.T) {
	db := &fakeDatabase{row: &fakeRow{values: []any{1}}}
	opener := &scriptedOpener{dbs: []*fakeDatabase{db}}
	c := NewConnector(zerolog.Nop(), WithOpener(opener.open))

	exists, err := c.Exists(context.Background(), EnginePostgres, "postgresql://u:p@h/postgres", "app")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected exists = true")
	}
	if len(db.queries) != 1 {
		t.Fatalf("queries = %v", db.queries)
	}
	if strings.Contains(db.queries[0], "app") {
		t.Errorf("database name interpolated into query: %q", db.queries[0])
	}
	if len(db.args[0]) != 1 || db.args[0][0] != "app" {
		t.Errorf("name not bound as parameter: %v", db.args[0])
	}
}

func TestCanCreateDatabasePostgres(t *testing.T) {
	db := &fakeDatabase{row: &fakeRow{values: []any{true}}}
	opener := &scriptedOpener{dbs: []*fakeDatabase{db}}
	c := NewConnector(zerolog.Nop(), WithOpener(opener.open))

	can, reason, err := c.CanCreateDatabase(context.Background(), EnginePostgres, "postgresql://u:p@h/postgres")
	if err != nil {
		t.Fatal(err)
	}
	if !can {
		t.Errorf("expected canCreate, reason=%q", reason)
	}
}

func TestCanCreateDatabaseDeniedSQLServer(t *testing.T) {
	db := &fakeDatabase{row: &fakeRow{values: []any{0}}}
	opener := &scriptedOpener{dbs: []*fakeDatabase{db}}
	c := NewConnector(zerolog.Nop(), WithOpener(opener.open))

	can, reason, err := c.CanCreateDatabase(context.Background(), EngineSQLServer, "sqlserver://sa:p@h")
	if err != nil {
		t.Fatal(err)
	}
	if can {
		t.Error("expected canCreate = false")
	}
	if reason == "" {
		t.Error("denial must carry a reason")
	}
}
