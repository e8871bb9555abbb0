// Package store keeps a catalogue of computed normalization statistics in
// SQLite so earlier runs can be listed, compared and reloaded.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/qwop.data/internal/stats"
	"github.com/banshee-data/qwop.data/internal/timeutil"
)

// ErrNotFound is returned when a stats run does not exist.
var ErrNotFound = errors.New("stats run not found")

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// SourceFile summarizes one input file of a stats run.
type SourceFile struct {
	Path      string `json:"path"`
	Runs      int    `json:"runs"`
	RunsKept  int    `json:"runs_kept"`
	Timesteps int64  `json:"timesteps"`
	Kept      int64  `json:"kept"`
}

// StatsRun is one persisted statistics computation.
type StatsRun struct {
	StatsID         string                    `json:"stats_id"`
	CreatedAt       int64                     `json:"created_at_ns"`
	Count           int64                     `json:"count"`
	Width           int                       `json:"width"`
	DiscardEndCount int                       `json:"discard_end_count"`
	ConfigJSON      json.RawMessage           `json:"config_json,omitempty"`
	Stats           *stats.NormalizationStats `json:"-"`
	Sources         []SourceFile              `json:"sources,omitempty"`
}

// Store is a SQLite-backed stats catalogue.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and applies all
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// uriPath escapes the characters that end or escape the path part of an
// SQLite URI filename.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// dsn builds the URI filename for path with the connection pragmas.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + uriPath.Replace(path) + "?" + q.Encode()
}

// SetClock replaces the clock used for timestamps and retry backoff.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// InsertRun persists run and its sources in one transaction. If StatsID is
// empty, a UUID is generated; if CreatedAt is zero, the current time is used.
func (s *Store) InsertRun(run *StatsRun) error {
	if run.Stats == nil {
		return errors.New("stats run has no stats")
	}
	blob, err := stats.MarshalBlob(run.Stats)
	if err != nil {
		return err
	}
	if run.StatsID == "" {
		run.StatsID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	run.Count = run.Stats.Count
	run.Width = run.Stats.Width()

	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}

	return s.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO stats_runs (
				stats_id, created_at_ns, count, width, discard_end_count, config_json, stats_blob
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.StatsID, run.CreatedAt, run.Count, run.Width, run.DiscardEndCount, cfg, blob,
		); err != nil {
			return fmt.Errorf("insert stats run: %w", err)
		}
		for _, src := range run.Sources {
			if _, err := tx.Exec(`
				INSERT INTO stats_sources (stats_id, path, runs, runs_kept, timesteps, kept)
				VALUES (?, ?, ?, ?, ?, ?)`,
				run.StatsID, src.Path, src.Runs, src.RunsKept, src.Timesteps, src.Kept,
			); err != nil {
				return fmt.Errorf("insert source %s: %w", src.Path, err)
			}
		}
		return tx.Commit()
	})
}

const runColumns = `stats_id, created_at_ns, count, width, discard_end_count, config_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner, extra ...interface{}) (*StatsRun, error) {
	var r StatsRun
	var cfg sql.NullString
	dest := append([]interface{}{&r.StatsID, &r.CreatedAt, &r.Count, &r.Width, &r.DiscardEndCount, &cfg}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}

// GetRun returns a run with its stats and sources.
func (s *Store) GetRun(id string) (*StatsRun, error) {
	return s.getOne(`SELECT `+runColumns+`, stats_blob FROM stats_runs WHERE stats_id = ?`, id)
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun() (*StatsRun, error) {
	return s.getOne(`SELECT ` + runColumns + `, stats_blob FROM stats_runs ORDER BY created_at_ns DESC, rowid DESC LIMIT 1`)
}

func (s *Store) getOne(query string, args ...interface{}) (*StatsRun, error) {
	var blob []byte
	r, err := scanRun(s.db.QueryRow(query, args...), &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan stats run: %w", err)
	}
	if r.Stats, err = stats.UnmarshalBlob(blob); err != nil {
		return nil, fmt.Errorf("stats run %s: %w", r.StatsID, err)
	}
	if r.Sources, err = s.Sources(r.StatsID); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. Stats and Sources are
// not loaded; use GetRun for those. A limit of zero or less lists all runs.
func (s *Store) ListRuns(limit int) ([]*StatsRun, error) {
	query := `SELECT ` + runColumns + ` FROM stats_runs ORDER BY created_at_ns DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats runs: %w", err)
	}
	defer rows.Close()

	var runs []*StatsRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stats run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Sources returns the per-file summaries of a run ordered by path.
func (s *Store) Sources(id string) ([]SourceFile, error) {
	rows, err := s.db.Query(`
		SELECT path, runs, runs_kept, timesteps, kept
		FROM stats_sources
		WHERE stats_id = ?
		ORDER BY path`, id)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []SourceFile
	for rows.Next() {
		var f SourceFile
		if err := rows.Scan(&f.Path, &f.Runs, &f.RunsKept, &f.Timesteps, &f.Kept); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, by cascade, its sources.
func (s *Store) DeleteRun(id string) error {
	return s.retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM stats_runs WHERE stats_id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const (
	busyRetries = 5
	busyBackoff = 50 * time.Millisecond
)

// retryOnBusy runs fn, retrying with linear backoff while SQLite reports
// the database as busy or locked.
func (s *Store) retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		s.clock.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return fmt.Errorf("database busy after %d retries: %w", busyRetries, err)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
