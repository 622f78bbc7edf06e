package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Ключ advisory-блокировки миграций: только один процесс двигает схему,
// остальные инстансы ждут на старте.
const schemaLockID = int64(0x666d_7321)

const (
	migrationsGlob     = "sql/migrations/*.sql"
	migrationOpTimeout = 5 * time.Second
	migrationTableDDL  = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

// migrationScript — пара up/down SQL одной версии схемы.
type migrationScript struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrateUp применяет недостающие up-миграции. steps=0 — все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает последние применённые миграции.
// steps<=0 трактуется как один шаг: массовый откат должен быть явным.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus возвращает максимальную применённую версию схемы и
// количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, migrationOpTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}

	return version, count, nil
}

// migrate берёт advisory-блокировку на выделенном соединении и применяет
// либо откатывает миграции. Блокировка и её снятие обязаны происходить на
// одном и том же соединении, поэтому пул здесь не используется напрямую.
func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	scripts, err := readMigrationScripts(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationOpTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", schemaLockID)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	switch direction {
	case migrationUp:
		return runUp(ctx, conn, scripts, steps)
	case migrationDown:
		return runDown(ctx, conn, scripts, steps)
	default:
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}
}

func runUp(ctx context.Context, conn *sql.Conn, scripts []migrationScript, steps int) error {
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	done := 0
	for _, script := range scripts {
		if applied[script.Version] {
			continue
		}
		if err := runOneUp(ctx, conn, script); err != nil {
			return err
		}
		done++
		if steps > 0 && done >= steps {
			break
		}
	}

	return nil
}

func runDown(ctx context.Context, conn *sql.Conn, scripts []migrationScript, steps int) error {
	byVersion := make(map[int64]migrationScript, len(scripts))
	for _, script := range scripts {
		byVersion[script.Version] = script
	}

	versions, err := appliedVersionsNewestFirst(ctx, conn, steps)
	if err != nil {
		return err
	}

	for _, version := range versions {
		script, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		if err := runOneDown(ctx, conn, script); err != nil {
			return err
		}
	}

	return nil
}

// runOneUp применяет одну миграцию и её запись в schema_migrations в общей
// транзакции: частично применённых версий в таблице не бывает.
func runOneUp(ctx context.Context, conn *sql.Conn, script migrationScript) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (up %d): %w", script.Version, err)
	}

	if _, err := tx.ExecContext(ctx, script.Up); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute up migration %d_%s: %w", script.Version, script.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at)
		VALUES ($1, $2, NOW())
	`, script.Version, script.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record up migration %d_%s: %w", script.Version, script.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit up migration %d_%s: %w", script.Version, script.Name, err)
	}

	return nil
}

func runOneDown(ctx context.Context, conn *sql.Conn, script migrationScript) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (down %d): %w", script.Version, err)
	}

	if _, err := tx.ExecContext(ctx, script.Down); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute down migration %d_%s: %w", script.Version, script.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, script.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete migration record %d_%s: %w", script.Version, script.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit down migration %d_%s: %w", script.Version, script.Name, err)
	}

	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	return applied, nil
}

func appliedVersionsNewestFirst(ctx context.Context, conn *sql.Conn, limit int) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT version
		FROM schema_migrations
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations desc: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration desc: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations desc: %w", err)
	}

	return versions, nil
}

// parseMigrationName разбирает имя файла вида 0001_init.up.sql.
func parseMigrationName(base string) (int64, string, migrationDirection, error) {
	matches := migrationNamePattern.FindStringSubmatch(base)
	if len(matches) != 4 {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", base)
	}

	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("parse migration version from %s: %w", base, err)
	}

	return version, matches[2], migrationDirection(matches[3]), nil
}

// readMigrationScripts читает встроенные миграции и собирает их в пары
// up/down, отсортированные по версии. Непарные, пустые и конфликтующие
// файлы считаются ошибкой сборки схемы.
func readMigrationScripts(fsys fs.FS) ([]migrationScript, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	scripts := make(map[int64]*migrationScript)
	for _, file := range files {
		base := filepath.Base(file)
		version, name, direction, err := parseMigrationName(base)
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		script, ok := scripts[version]
		if !ok {
			script = &migrationScript{Version: version, Name: name}
			scripts[version] = script
		} else if script.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, script.Name, name)
		}

		switch direction {
		case migrationUp:
			if script.Up != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", version)
			}
			script.Up = body
		case migrationDown:
			if script.Down != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", version)
			}
			script.Down = body
		}
	}

	ordered := make([]migrationScript, 0, len(scripts))
	for _, script := range scripts {
		if script.Up == "" || script.Down == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", script.Version, script.Name)
		}
		ordered = append(ordered, *script)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	return ordered, nil
}
