package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys["sql/migrations/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestReadMigrationScripts(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"0001_init.up.sql":         "CREATE TABLE orders (id UUID PRIMARY KEY);",
		"0001_init.down.sql":       "DROP TABLE IF EXISTS orders;",
		"0002_dist_locks.up.sql":   "CREATE TABLE dist_locks (key TEXT PRIMARY KEY);",
		"0002_dist_locks.down.sql": "DROP TABLE IF EXISTS dist_locks;",
	})

	scripts, err := readMigrationScripts(fsys)
	if err != nil {
		t.Fatalf("read migration scripts: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(scripts))
	}

	if scripts[0].Version != 1 || scripts[0].Name != "init" {
		t.Fatalf("unexpected first script: %+v", scripts[0])
	}
	if scripts[1].Version != 2 || scripts[1].Name != "dist_locks" {
		t.Fatalf("unexpected second script: %+v", scripts[1])
	}
	if scripts[0].Up == "" || scripts[0].Down == "" {
		t.Fatalf("script must carry both bodies: %+v", scripts[0])
	}
}

func TestReadMigrationScripts_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"0001_init.up.sql": "CREATE TABLE orders (id UUID PRIMARY KEY);",
	})

	_, err := readMigrationScripts(fsys)
	if err == nil {
		t.Fatal("expected error for missing down file")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadMigrationScripts_InvalidName(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"not_a_migration.sql": "SELECT 1;",
	})

	if _, err := readMigrationScripts(fsys); err == nil {
		t.Fatal("expected error for invalid file name")
	}
}

func TestReadMigrationScripts_EmptyBody(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"0001_init.up.sql":   "   \n",
		"0001_init.down.sql": "DROP TABLE IF EXISTS orders;",
	})

	if _, err := readMigrationScripts(fsys); err == nil {
		t.Fatal("expected error for empty migration body")
	}
}

func TestReadMigrationScripts_DuplicateUp(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"001_init.up.sql":    "CREATE TABLE a (id INT);",
		"0001_init.up.sql":   "CREATE TABLE b (id INT);",
		"0001_init.down.sql": "DROP TABLE IF EXISTS a;",
	})

	_, err := readMigrationScripts(fsys)
	if err == nil {
		t.Fatal("expected error for duplicate up file")
	}
	if !strings.Contains(err.Error(), "duplicate up") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseMigrationName(t *testing.T) {
	t.Parallel()

	version, name, direction, err := parseMigrationName("0002_dist_locks.down.sql")
	if err != nil {
		t.Fatalf("parse migration name: %v", err)
	}
	if version != 2 || name != "dist_locks" || direction != migrationDown {
		t.Fatalf("unexpected parse result: %d %s %s", version, name, direction)
	}

	if _, _, _, err := parseMigrationName("init.sql"); err == nil {
		t.Fatal("expected error for malformed name")
	}
}
