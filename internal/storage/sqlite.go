package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eugenenazirov/box-simulator/internal/packer"
)

const schema = `
CREATE TABLE IF NOT EXISTS limits (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	volume_max REAL NOT NULL,
	weight_max REAL NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL,
	source TEXT NOT NULL,
	policy TEXT NOT NULL,
	box_count INTEGER NOT NULL,
	report TEXT NOT NULL
);`

// SQLiteStorage persists limits and runs in a SQLite database.
type SQLiteStorage struct {
	db        *sqlx.DB
	retention int
}

// OpenSQLite opens (creating if needed) the database at dsn and applies the
// schema. The stored limits start at DefaultLimits.
func OpenSQLite(dsn string, retention int) (*SQLiteStorage, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// every connection to :memory: is a separate database
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := migrateLimits(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO limits (id, volume_max, weight_max, updated_at) VALUES (1, ?, ?, ?)`,
		defaultLimits.VolumeMax, defaultLimits.WeightMax, time.Now().UTC(),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed limits: %w", err)
	}

	if retention <= 0 {
		retention = defaultRunRetention
	}
	return &SQLiteStorage{db: db, retention: retention}, nil
}

// migrateLimits adds the updated_at column to databases created before it
// existed.
func migrateLimits(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM pragma_table_info('limits') WHERE name = 'updated_at'`); err != nil {
		return fmt.Errorf("inspect limits table: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(
		`ALTER TABLE limits ADD COLUMN updated_at TIMESTAMP NOT NULL DEFAULT '1970-01-01 00:00:00'`,
	); err != nil {
		return fmt.Errorf("migrate limits table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type limitsRow struct {
	VolumeMax float64   `db:"volume_max"`
	WeightMax float64   `db:"weight_max"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (s *SQLiteStorage) GetLimits() (StoredLimits, error) {
	var row limitsRow
	if err := s.db.Get(&row, `SELECT volume_max, weight_max, updated_at FROM limits WHERE id = 1`); err != nil {
		return StoredLimits{}, fmt.Errorf("read limits: %w", err)
	}
	return StoredLimits{
		Limits:    packer.Limits{VolumeMax: row.VolumeMax, WeightMax: row.WeightMax},
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *SQLiteStorage) SetLimits(limits packer.Limits, updatedAt time.Time) error {
	if limits.Validate() != nil {
		return ErrInvalidLimits
	}
	if _, err := s.db.Exec(
		`UPDATE limits SET volume_max = ?, weight_max = ?, updated_at = ? WHERE id = 1`,
		limits.VolumeMax, limits.WeightMax, updatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("write limits: %w", err)
	}
	return nil
}

// SaveRun inserts run and prunes runs beyond the retention limit.
func (s *SQLiteStorage) SaveRun(run Run) error {
	payload, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	summary := run.Summary()
	if _, err := tx.Exec(
		`INSERT INTO runs (id, created_at, source, policy, box_count, report) VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.CreatedAt.UTC(), summary.Source, string(summary.Policy), summary.BoxCount, string(payload),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if _, err := tx.Exec(
		`DELETE FROM runs WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)`,
		s.retention,
	); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return tx.Commit()
}

type runRow struct {
	RunSummary
	Report string `db:"report"`
}

func (s *SQLiteStorage) GetRun(id string) (Run, error) {
	var row runRow
	err := s.db.Get(&row,
		`SELECT id, created_at, source, policy, box_count, report FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}

	run := Run{ID: row.ID, CreatedAt: row.CreatedAt, Source: row.Source}
	if err := json.Unmarshal([]byte(row.Report), &run.Report); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

func (s *SQLiteStorage) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	out := []RunSummary{}
	err := s.db.Select(&out,
		`SELECT id, created_at, source, policy, box_count FROM runs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
