package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "raw.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"runs", "run_values", "schema_version"} {
		var n int
		err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	for i := 0; i < 3; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema() call %d error = %v", i, err)
		}
	}

	var rows int
	if err := db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM schema_version`); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("schema_version rows = %d, want 1", rows)
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(ctx, db); err == nil {
		t.Error("expected error for a database from a newer version")
	}
}

func TestInitSchema_OlderVersion(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE schema_version SET version = 0`); err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(ctx, db); err == nil {
		t.Error("expected error for a database from an older version")
	}
}

func TestValidateIntegrity(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Errorf("ValidateIntegrity() on fresh database error = %v", err)
	}
}

func TestValidateIntegrity_OrphanValues(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	// foreign_keys is off on this connection, so the orphan insert succeeds.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO run_values (run_id, snapshot, model, iteration, path, compartment, value)
		VALUES ('missing', 0, 0, 0, '', 'S', 1)`); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}
	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("expected foreign_key_check failure")
	}
}

func TestResetSchema(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, name, models, snapshots, created_at)
		VALUES ('r1', 'x', 1, 1, '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}

	if err := ResetSchema(ctx, db); err != nil {
		t.Fatalf("ResetSchema() error = %v", err)
	}
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM runs`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("runs after reset = %d, want 0", n)
	}
}
