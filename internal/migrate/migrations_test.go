package migrate

import (
	"testing"

	"taskman/internal/db"
)

func TestMigrateFreshAndRerun(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("version after migrate: %d", v)
	}

	// Re-running against an up-to-date database is a no-op.
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v2, err := Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v2 != v {
		t.Fatalf("version changed on rerun: %d -> %d", v, v2)
	}

	for _, table := range []string{"users", "projects", "tasks", "status_history"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
