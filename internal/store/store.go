// Package store keeps analysis runs and their closest approaches in SQLite so
// experiments can be compared over time.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"avoidance-eval/internal/experiment"
)

//go:embed schema.sql
var schemaSQL string

const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs apply per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Printf("store opened path=%s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Run is one analysis of one experiment directory.
type Run struct {
	ID          string        `json:"run_id"`
	Experiment  string        `json:"experiment"`
	TimeDeltaUS int64         `json:"time_delta_us"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Vehicles    int           `json:"vehicles"`
	Rounds      int           `json:"rounds"`
	Samples     int           `json:"samples"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"-"`
}

// CreateRun records the start of an analysis.
func (s *Store) CreateRun(experimentDir string, timeDeltaUS int64) (Run, error) {
	r := Run{
		ID:          uuid.New().String(),
		Experiment:  experimentDir,
		TimeDeltaUS: timeDeltaUS,
		Status:      StatusRunning,
		StartedAt:   time.Now(),
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (run_id, experiment, time_delta_us, status, started_at)
			VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Experiment, r.TimeDeltaUS, r.Status, r.StartedAt.UnixNano())
		return err
	})
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// CompleteRun marks a run finished. A non-nil runErr marks it failed.
func (s *Store) CompleteRun(runID string, rep experiment.Report, runErr error) error {
	status, msg := StatusComplete, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE runs
			SET status = ?, error = ?, vehicles = ?, rounds = ?, samples = ?, finished_at = ?
			WHERE run_id = ?`,
			status, nullString(msg), len(rep.Vehicles), rep.Stats.Rounds, rep.Stats.Taken,
			time.Now().UnixNano(), runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

// InsertApproaches stores every approach of rep under runID in one transaction.
func (s *Store) InsertApproaches(runID string, rep experiment.Report) error {
	pairs := rep.Pairs()
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO approaches (
				run_id, vehicle, other_vehicle, distance_m, time_us,
				this_lat, this_lon, this_alt, other_lat, other_lon, other_alt
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range pairs {
			if _, err := stmt.Exec(runID, p.Vehicle, p.OtherVehicle, p.DistanceM, p.TimeUS,
				p.This.LatDeg, p.This.LonDeg, p.This.AltM,
				p.Other.LatDeg, p.Other.LonDeg, p.Other.AltM); err != nil {
				return fmt.Errorf("insert %d-%d: %w", p.Vehicle, p.OtherVehicle, err)
			}
		}
		return tx.Commit()
	})
}

// ListRuns returns the most recent runs first; limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	q := `
		SELECT run_id, experiment, time_delta_us, status, COALESCE(error, ''),
		       vehicles, rounds, samples, started_at, COALESCE(finished_at, 0)
		FROM runs
		ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Experiment, &r.TimeDeltaUS, &r.Status, &r.Error,
			&r.Vehicles, &r.Rounds, &r.Samples, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished > 0 {
			r.FinishedAt = time.Unix(0, finished)
			r.Duration = r.FinishedAt.Sub(r.StartedAt)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Approaches returns the stored approaches of a run, closest first.
func (s *Store) Approaches(runID string) ([]experiment.Pair, error) {
	rows, err := s.db.Query(`
		SELECT vehicle, other_vehicle, distance_m, time_us,
		       this_lat, this_lon, this_alt, other_lat, other_lon, other_alt
		FROM approaches
		WHERE run_id = ?
		ORDER BY distance_m ASC, vehicle ASC, other_vehicle ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []experiment.Pair
	for rows.Next() {
		var p experiment.Pair
		if err := rows.Scan(&p.Vehicle, &p.OtherVehicle, &p.DistanceM, &p.TimeUS,
			&p.This.LatDeg, &p.This.LonDeg, &p.This.AltM,
			&p.Other.LatDeg, &p.Other.LonDeg, &p.Other.AltM); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var (
	busyAttempts = 5
	busyBackoff  = 50 * time.Millisecond
)

// retryOnBusy retries fn while SQLite reports the database busy or locked.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 1; attempt <= busyAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		log.Printf("store busy, retry %d/%d: %v", attempt, busyAttempts, err)
		time.Sleep(time.Duration(attempt) * busyBackoff)
	}
	return err
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
