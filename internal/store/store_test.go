package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_creates_database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNew_invalid_path(t *testing.T) {
	if _, err := New("/nonexistent/path/to/db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestTx_commit(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE routers (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO routers (id, name) VALUES (1, 'edge-1')")
		return err
	})
	if err != nil {
		t.Fatalf("Tx commit: %v", err)
	}

	var name string
	if err := s.DB().QueryRowContext(ctx, "SELECT name FROM routers WHERE id = 1").Scan(&name); err != nil {
		t.Fatalf("query after commit: %v", err)
	}
	if name != "edge-1" {
		t.Errorf("got name %q, want %q", name, "edge-1")
	}
}

func TestTx_rollback(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE routers (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	sentinel := errors.New("boom")
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO routers (id, name) VALUES (1, 'edge-1')"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM routers").Scan(&count); err != nil {
		t.Fatalf("count after rollback: %v", err)
	}
	if count != 0 {
		t.Errorf("got count %d after rollback, want 0", count)
	}
}

func TestMigrate_applies_in_order_and_skips_applied(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	calls := 0
	migrations := []plugin.Migration{
		{Version: 1, Description: "create exchanges", Up: func(tx *sql.Tx) error {
			calls++
			_, err := tx.Exec("CREATE TABLE peering_ix (id INTEGER PRIMARY KEY, slug TEXT)")
			return err
		}},
		{Version: 2, Description: "add name", Up: func(tx *sql.Tx) error {
			calls++
			_, err := tx.Exec("ALTER TABLE peering_ix ADD COLUMN name TEXT")
			return err
		}},
	}

	if err := s.Migrate(ctx, "peering", migrations); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "peering", migrations); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if calls != 2 {
		t.Errorf("migration Up called %d times, want 2", calls)
	}

	if _, err := s.DB().ExecContext(ctx, "INSERT INTO peering_ix (slug, name) VALUES ('ams-ix', 'AMS-IX')"); err != nil {
		t.Fatalf("insert after migration: %v", err)
	}

	applied, err := s.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied: %v", err)
	}
	if len(applied) != 2 || applied[0].Version != 1 || applied[1].Version != 2 {
		t.Errorf("Applied() = %+v, want versions 1 and 2", applied)
	}
}

func TestMigrate_partial_failure_preserves_earlier(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	migrations := []plugin.Migration{
		{Version: 1, Description: "ok", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE partial_test (id INTEGER)")
			return err
		}},
		{Version: 2, Description: "bad", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("INVALID SQL")
			return err
		}},
	}

	if err := s.Migrate(ctx, "partial", migrations); err == nil {
		t.Fatal("expected error from partial migration")
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM _migrations WHERE plugin_name = 'partial'").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 committed migration, got %d", count)
	}
}

func TestPragmas(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	var mode string
	if err := s.DB().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := s.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		steps   []string
		wantErr error
	}{
		{name: "first run", steps: []string{"0.4.0"}},
		{name: "same version", steps: []string{"0.4.0", "0.4.0"}},
		{name: "upgrade", steps: []string{"0.4.0", "0.5.0"}},
		{name: "downgrade rejected", steps: []string{"0.5.0", "0.4.0"}, wantErr: ErrNewerSchema},
		{name: "dev passes", steps: []string{"0.5.0", "dev", "0.1.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tempDB(t)
			var err error
			for _, v := range tt.steps {
				if err = s.CheckVersion(context.Background(), v); err != nil {
					break
				}
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("CheckVersion: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckVersion error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstraintClassification(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY, asn INTEGER NOT NULL UNIQUE CHECK (asn > 0))`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id))`,
		`INSERT INTO parent (id, asn) VALUES (1, 64500)`,
	}
	for _, q := range stmts {
		if _, err := s.DB().ExecContext(ctx, q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}

	_, err := s.DB().ExecContext(ctx, `INSERT INTO parent (asn) VALUES (64500)`)
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate asn: IsUniqueViolation(%v) = false", err)
	}

	_, err = s.DB().ExecContext(ctx, `INSERT INTO parent (asn) VALUES (-1)`)
	if !IsCheckViolation(err) {
		t.Errorf("negative asn: IsCheckViolation(%v) = false", err)
	}

	_, err = s.DB().ExecContext(ctx, `INSERT INTO child (parent_id) VALUES (42)`)
	if !IsForeignKeyViolation(err) {
		t.Errorf("dangling parent: IsForeignKeyViolation(%v) = false", err)
	}

	if IsUniqueViolation(nil) || IsUniqueViolation(errors.New("other")) {
		t.Error("IsUniqueViolation must be false for unrelated errors")
	}
}

func TestTimeRoundTrip_preserves_order(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 5000, time.UTC)
	late := early.Add(900 * time.Millisecond)

	a, b := FormatTime(early), FormatTime(late)
	if len(a) != len(b) || a >= b {
		t.Fatalf("formatted times do not sort: %q vs %q", a, b)
	}

	got, err := ParseTime(a)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(early.Truncate(time.Microsecond)) {
		t.Errorf("ParseTime(%q) = %v, want %v", a, got, early)
	}

	if p, err := ParseNullTime(NullTime(nil)); err != nil || p != nil {
		t.Errorf("ParseNullTime(NULL) = %v, %v", p, err)
	}
}
