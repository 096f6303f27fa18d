// Package history persists discovery run outcomes to SQLite so the
// status API can report recent passes. History is advisory: failures
// here never affect the projected gateway config.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/automonocle/automonocle/internal/discovery"
)

// Store wraps the SQLite connection holding run history.
type Store struct {
	*sql.DB
	path   string
	logger *slog.Logger
}

// Run is one persisted discovery run.
type Run struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	CamerasTotal    int       `json:"cameras_total"`
	CamerasResolved int       `json:"cameras_resolved"`
	RelayFound      bool      `json:"relay_found"`
	UniFiMode       string    `json:"unifi_mode"`
}

// RunCamera is one camera outcome within a run.
type RunCamera struct {
	RunID    string `json:"run_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Origin   string `json:"origin"`
	Resolved bool   `json:"resolved"`
	URL      string `json:"url"`
}

// Open opens (and migrates) the history database at the given path.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "history")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &Store{DB: db, path: path, logger: logger}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("History database opened", "path", path)
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// RecordRun persists one discovery result with its per-camera rows.
func (s *Store) RecordRun(ctx context.Context, result *discovery.Result) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, cameras_total, cameras_resolved, relay_found, unifi_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.Unix(),
		result.FinishedAt.Unix(),
		result.Total,
		result.Resolved,
		boolToInt(result.RelayFound),
		string(result.UniFiMode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rec := range result.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_cameras (run_id, entity_id, name, origin, resolved, url)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.RunID, rec.EntityID, rec.Name, string(rec.Origin), boolToInt(rec.Resolved()), rec.StreamURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run camera: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.QueryContext(ctx, `
		SELECT id, started_at, finished_at, cameras_total, cameras_resolved, relay_found, unifi_mode
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		var relayFound int
		if err := rows.Scan(&r.ID, &started, &finished, &r.CamerasTotal, &r.CamerasResolved, &relayFound, &r.UniFiMode); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		r.RelayFound = relayFound != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunCameras returns the per-camera outcomes of a run.
func (s *Store) RunCameras(ctx context.Context, runID string) ([]RunCamera, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT run_id, entity_id, name, origin, resolved, url
		FROM run_cameras WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run cameras: %w", err)
	}
	defer rows.Close()

	var cameras []RunCamera
	for rows.Next() {
		var c RunCamera
		var resolved int
		if err := rows.Scan(&c.RunID, &c.EntityID, &c.Name, &c.Origin, &resolved, &c.URL); err != nil {
			return nil, err
		}
		c.Resolved = resolved != 0
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

// Prune deletes runs older than the cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) error {
	_, err := s.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.Unix())
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
