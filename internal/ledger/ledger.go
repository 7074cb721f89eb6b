// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records conversions in a SQLite database so that batch
// runs can skip sources whose content and rules have not changed, and so
// that past runs can be listed.
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"

	"github.com/pdiddy/l2m/pkg/types"
)

// DefaultPath is the ledger location used when none is configured.
const DefaultPath = ".l2m/ledger.db"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the ledger database.
type Store struct {
	db   *sql.DB
	path string
}

// Run summarizes one batch invocation.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
	Converted  int       `json:"converted" yaml:"converted"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
}

// Open opens or creates the ledger at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Batch workers share the store; sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			converted INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS conversions (
			source_path TEXT PRIMARY KEY,
			output_path TEXT NOT NULL,
			digest TEXT NOT NULL,
			run_id TEXT,
			footnotes INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			converted_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_run_id ON conversions(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Digest fingerprints a source file together with the rule file that
// converts it. A change to either produces a new digest.
func Digest(source, rules []byte) string {
	h := blake3.New()
	h.Write([]byte(strconv.Itoa(len(rules)) + ":"))
	h.Write(rules)
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// BeginRun registers a new batch run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, started time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, started.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts of a run.
func (s *Store) FinishRun(ctx context.Context, id string, finished time.Time, converted, skipped, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, converted = ?, skipped = ?, failed = ? WHERE id = ?`,
		finished.UTC().Format(timeLayout), converted, skipped, failed, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: no such run", id)
	}
	return nil
}

// Record upserts the ledger row for rec.SourcePath.
func (s *Store) Record(ctx context.Context, rec types.ConversionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (source_path, output_path, digest, run_id, footnotes, status, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_path) DO UPDATE SET
			output_path=excluded.output_path, digest=excluded.digest, run_id=excluded.run_id,
			footnotes=excluded.footnotes, status=excluded.status, converted_at=excluded.converted_at`,
		rec.SourcePath, rec.OutputPath, rec.Digest, rec.RunID, rec.Footnotes,
		string(rec.Status), rec.ConvertedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.SourcePath, err)
	}
	return nil
}

// Lookup returns the ledger row for source. ok is false when the source
// has never been recorded.
func (s *Store) Lookup(ctx context.Context, source string) (rec types.ConversionRecord, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source_path, output_path, digest, run_id, footnotes, status, converted_at
		 FROM conversions WHERE source_path = ?`, source)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ConversionRecord{}, false, nil
	}
	if err != nil {
		return types.ConversionRecord{}, false, fmt.Errorf("looking up %s: %w", source, err)
	}
	return rec, true, nil
}

// Unchanged reports whether source was last converted successfully with
// the same digest into output, and that file still exists.
func (s *Store) Unchanged(ctx context.Context, source, output, digest string) (bool, error) {
	rec, ok, err := s.Lookup(ctx, source)
	if err != nil || !ok {
		return false, err
	}
	if rec.Status != types.ConversionDone || rec.Digest != digest {
		return false, nil
	}
	if filepath.Clean(rec.OutputPath) != filepath.Clean(output) {
		return false, nil
	}
	if _, err := os.Stat(output); err != nil {
		return false, nil
	}
	return true, nil
}

// List returns every ledger row ordered by source path.
func (s *Store) List(ctx context.Context) ([]types.ConversionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, output_path, digest, run_id, footnotes, status, converted_at
		 FROM conversions ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("listing conversions: %w", err)
	}
	defer rows.Close()

	var records []types.ConversionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Runs returns the most recent runs first, at most limit of them
// (all when limit <= 0).
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, converted, skipped, failed FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Converted, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(timeLayout, finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.ConversionRecord, error) {
	var (
		rec       types.ConversionRecord
		runID     sql.NullString
		status    string
		converted string
	)
	if err := sc.Scan(&rec.SourcePath, &rec.OutputPath, &rec.Digest, &runID,
		&rec.Footnotes, &status, &converted); err != nil {
		return rec, err
	}
	rec.RunID = runID.String
	rec.Status = types.ConversionStatus(status)
	t, err := time.Parse(timeLayout, converted)
	if err != nil {
		return rec, fmt.Errorf("parsing converted_at %q: %w", converted, err)
	}
	rec.ConvertedAt = t
	return rec, nil
}
