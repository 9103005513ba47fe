package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hay-kot/tradeoff/internal/data/db"
)

// Writes from the event bus (task recording) and from CLI commands can
// overlap; a busy database is retried this many times before giving up.
const (
	busyAttempts = 5
	busyBackoff  = 20 * time.Millisecond
)

// IsBusyError reports whether err is SQLite refusing a write because another
// connection holds the lock.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// IsCorruptionError reports whether err means the database file is unusable.
func IsCorruptionError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database")
}

// IsNotFoundError reports whether err is a missing row.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// retryBusy runs write, retrying with a growing pause while the database is
// busy. Other errors return at once.
func retryBusy(ctx context.Context, write func() error) error {
	wait := busyBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = write()
		if !IsBusyError(err) || attempt == busyAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// RecoverFromCorruption moves the database in dataDir, with its WAL and SHM
// files, aside as <name>.corrupt.<timestamp> so a fresh one can be created.
// It returns the backup path of the main file, or "" when there was none.
func RecoverFromCorruption(dataDir string) (string, error) {
	dbPath := filepath.Join(dataDir, db.FileName)
	backupPath := fmt.Sprintf("%s.corrupt.%s", dbPath, time.Now().Format("20060102-150405"))

	moved := ""
	for _, suffix := range []string{"", "-wal", "-shm"} {
		src := dbPath + suffix
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}

		// A stale WAL or SHM left next to a new database would be replayed
		// into it, so one that cannot be moved is deleted.
		if err := os.Rename(src, backupPath+suffix); err != nil {
			if suffix == "" {
				return "", fmt.Errorf("back up corrupted database: %w", err)
			}
			if rmErr := os.Remove(src); rmErr != nil {
				return "", fmt.Errorf("remove stale %s file: %w", strings.TrimPrefix(suffix, "-"), rmErr)
			}
			continue
		}
		if suffix == "" {
			moved = backupPath
		}
	}

	return moved, nil
}
