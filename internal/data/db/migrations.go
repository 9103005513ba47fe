package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one numbered schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationStatus describes a known migration. AppliedAt is zero while the
// migration is pending.
type MigrationStatus struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Applied reports whether the migration has run.
func (s MigrationStatus) Applied() bool {
	return !s.AppliedAt.IsZero()
}

// migrationFile is a parsed NNNN_name.{up,down}.sql file name.
type migrationFile struct {
	version int
	name    string
	down    bool
}

var migrationName = regexp.MustCompile(`^(\d+)_(\w+)\.(up|down)\.sql$`)

func parseMigrationFile(filename string) (migrationFile, error) {
	m := migrationName.FindStringSubmatch(filename)
	if m == nil {
		return migrationFile{}, fmt.Errorf("expected NNNN_name.up.sql or NNNN_name.down.sql")
	}

	version, err := strconv.Atoi(m[1])
	if err != nil {
		return migrationFile{}, fmt.Errorf("version %q: %w", m[1], err)
	}
	if version <= 0 {
		return migrationFile{}, fmt.Errorf("version must be positive, got %d", version)
	}

	return migrationFile{version: version, name: m[2], down: m[3] == "down"}, nil
}

// migrator applies the migrations found at the root of source to conn.
type migrator struct {
	conn   *sql.DB
	source fs.FS
	log    zerolog.Logger
}

func newMigrator(conn *sql.DB) *migrator {
	source, _ := fs.Sub(migrationsFS, "migrations")
	return &migrator{
		conn:   conn,
		source: source,
		log:    log.With().Str("cmp", "migrations").Logger(),
	}
}

// load reads every migration, requiring each version to have exactly one up
// and one down file. The result is sorted by version.
func (m *migrator) load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		f, err := parseMigrationFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(m.source, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		mig := byVersion[f.version]
		if mig == nil {
			mig = &Migration{Version: f.version, Name: f.name}
			byVersion[f.version] = mig
		}
		if mig.Name != f.name {
			return nil, fmt.Errorf("migration %04d is named both %q and %q", f.version, mig.Name, f.name)
		}

		target := &mig.UpSQL
		if f.down {
			target = &mig.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("migration %04d has two %s files", f.version, direction(f.down))
		}
		*target = string(content)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		switch {
		case mig.UpSQL == "":
			return nil, fmt.Errorf("migration %04d has no up file", mig.Version)
		case mig.DownSQL == "":
			return nil, fmt.Errorf("migration %04d has no down file", mig.Version)
		}
		migrations = append(migrations, *mig)
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}

func direction(down bool) string {
	if down {
		return "down"
	}
	return "up"
}

// up applies pending migrations in version order and returns how many ran.
func (m *migrator) up(ctx context.Context) (int, error) {
	migrations, err := m.load()
	if err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		m.log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")
		err := m.inTx(ctx, mig.UpSQL,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Name, time.Now().UnixNano())
		if err != nil {
			return ran, fmt.Errorf("migration %04d (%s): %w", mig.Version, mig.Name, err)
		}
		ran++
	}

	return ran, nil
}

// down reverts the newest n applied migrations.
func (m *migrator) down(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("steps must be positive, got %d", n)
	}

	statuses, err := m.status(ctx)
	if err != nil {
		return err
	}
	migrations, err := m.load()
	if err != nil {
		return err
	}

	var revert []Migration
	for i := len(statuses) - 1; i >= 0 && len(revert) < n; i-- {
		if statuses[i].Applied() {
			revert = append(revert, migrations[i])
		}
	}
	if len(revert) < n {
		return fmt.Errorf("asked to revert %d migrations but only %d are applied", n, len(revert))
	}

	for _, mig := range revert {
		m.log.Warn().Int("version", mig.Version).Str("name", mig.Name).Msg("reverting migration")
		err := m.inTx(ctx, mig.DownSQL, "DELETE FROM schema_migrations WHERE version = ?", mig.Version)
		if err != nil {
			return fmt.Errorf("revert migration %04d (%s): %w", mig.Version, mig.Name, err)
		}
	}

	return nil
}

// status lists every known migration with its applied time.
func (m *migrator) status(ctx context.Context) ([]MigrationStatus, error) {
	migrations, err := m.load()
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		out[i] = MigrationStatus{Version: mig.Version, Name: mig.Name, AppliedAt: applied[mig.Version]}
	}
	return out, nil
}

// applied returns the applied versions with their timestamps, creating the
// tracking table on first use.
func (m *migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	_, err := m.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := m.conn.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at int64
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = time.Unix(0, at)
	}
	return applied, rows.Err()
}

// inTx runs the migration script and its bookkeeping statement atomically.
func (m *migrator) inTx(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// SchemaStatus lists the known migrations and when each was applied.
func (db *DB) SchemaStatus(ctx context.Context) ([]MigrationStatus, error) {
	return newMigrator(db.conn).status(ctx)
}

// SchemaVersion returns the newest applied migration version, 0 when none.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	statuses, err := db.SchemaStatus(ctx)
	if err != nil {
		return 0, err
	}

	version := 0
	for _, s := range statuses {
		if s.Applied() {
			version = s.Version
		}
	}
	return version, nil
}

// Rollback reverts the newest steps applied migrations. The next Open
// applies them again.
func (db *DB) Rollback(ctx context.Context, steps int) error {
	return newMigrator(db.conn).down(ctx, steps)
}
