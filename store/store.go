// Package store persists sweep trajectories in sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableTrajectory = "trajectory"
	tableFinal      = "final"
)

// Store is a sqlite database of trajectories keyed by decoherence rate.
type Store struct {
	Path string

	db *sql.DB
}

// Open creates a fresh database at dbPath, dropping the results of any previous run.
func Open(dbPath string) (*Store, error) {
	s := &Store{Path: dbPath}
	var err error
	s.db, err = newDB(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Write stores the population trajectory of one rate.
// Rows of a rate become visible only after all of them are written.
func (s *Store) Write(rate float64, times, population []float64) error {
	if len(times) != len(population) {
		return errors.Errorf("%d times, %d populations", len(times), len(population))
	}
	if len(times) == 0 {
		return errors.Errorf("empty trajectory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := write(ctx, tx, rate, times, population); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func write(ctx context.Context, tx *sql.Tx, rate float64, times, population []float64) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (rate, i, t, population) VALUES (?, ?, ?, ?)`, tableTrajectory)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer stmt.Close()
	for i, t := range times {
		if _, err := stmt.ExecContext(ctx, rate, i, t, population[i]); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %v %d", sqlStr, rate, i))
		}
	}

	sqlStr = fmt.Sprintf(`INSERT OR REPLACE INTO %s (rate, population) VALUES (?, ?)`, tableFinal)
	if _, err := tx.ExecContext(ctx, sqlStr, rate, population[len(population)-1]); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %v", sqlStr, rate))
	}
	return nil
}

// Rates returns the stored rates in increasing order.
func (s *Store) Rates() ([]float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT rate FROM %s ORDER BY rate`, tableFinal)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	rates := make([]float64, 0)
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, errors.Wrap(err, "")
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return rates, nil
}

// Final returns the population at the last time of rate.
func (s *Store) Final(rate float64) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT population FROM %s WHERE rate=?`, tableFinal)
	var p float64
	if err := s.db.QueryRowContext(ctx, sqlStr, rate).Scan(&p); err != nil {
		return -1, errors.Wrap(err, fmt.Sprintf("%v", rate))
	}
	return p, nil
}

// Trajectory returns the times and populations of rate in time order.
func (s *Store) Trajectory(rate float64) ([]float64, []float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT t, population FROM %s WHERE rate=? ORDER BY i`, tableTrajectory)
	rows, err := s.db.QueryContext(ctx, sqlStr, rate)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	times, population := make([]float64, 0), make([]float64, 0)
	for rows.Next() {
		var t, p float64
		if err := rows.Scan(&t, &p); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		times = append(times, t)
		population = append(population, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	if len(times) == 0 {
		return nil, nil, errors.Errorf("no trajectory for rate %v", rate)
	}
	return times, population, nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableTrajectory),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableFinal),
		fmt.Sprintf(`CREATE TABLE %s (rate REAL, i INTEGER, t REAL, population REAL, PRIMARY KEY (rate, i)) STRICT`, tableTrajectory),
		fmt.Sprintf(`CREATE TABLE %s (rate REAL PRIMARY KEY, population REAL) STRICT`, tableFinal),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
