package cmat

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	tableMatrix = "m"
	tableKey    = "k"
)

// DiskStore is a collection of equally shaped matrices keyed by an index pair, backed by a sqlite file.
// It holds collections too large for memory, such as a control generator per channel and time step.
// Only nonzero entries are stored.
type DiskStore struct {
	Path string
	rows int
	cols int

	db *sql.DB
}

// NewDiskStore creates an empty store at dbPath, replacing any previous content.
func NewDiskStore(dbPath string, rows, cols int) (*DiskStore, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("%d %d", rows, cols)
	}
	s := &DiskStore{Path: dbPath, rows: rows, cols: cols}
	var err error
	s.db, err = newDB(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

// Close closes the database and removes its file.
func (s *DiskStore) Close() error {
	var err error
	if err1 := s.db.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err1 := os.Remove(s.Path); err1 != nil && err == nil {
		err = err1
	}
	return err
}

func (s *DiskStore) Rows() int { return s.rows }
func (s *DiskStore) Cols() int { return s.cols }

// Put stores m under the key (i, j), replacing any matrix already there.
func (s *DiskStore) Put(i, j int, m *mat.CDense) error {
	if r, c := m.Dims(); r != s.rows || c != s.cols {
		return errors.Errorf("%dx%d, expected %dx%d", r, c, s.rows, s.cols)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := put(ctx, tx, i, j, m); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %d, rollback: %v", i, j, rbErr))
		}
		return errors.Wrap(err, fmt.Sprintf("%d %d", i, j))
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func put(ctx context.Context, tx *sql.Tx, i, j int, m *mat.CDense) error {
	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE i=? AND j=?`, tableMatrix)
	if _, err := tx.ExecContext(ctx, sqlStr, i, j); err != nil {
		return errors.Wrap(err, sqlStr)
	}
	sqlStr = fmt.Sprintf(`INSERT OR REPLACE INTO %s (i, j) VALUES (?, ?)`, tableKey)
	if _, err := tx.ExecContext(ctx, sqlStr, i, j); err != nil {
		return errors.Wrap(err, sqlStr)
	}

	sqlStr = fmt.Sprintf(`INSERT INTO %s (i, j, r, c, re, im) VALUES (?, ?, ?, ?, ?, ?)`, tableMatrix)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, sqlStr)
	}
	defer stmt.Close()
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if v == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, i, j, r, c, real(v), imag(v)); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %d %v", r, c, v))
			}
		}
	}
	return nil
}

// At returns the matrix stored under the key (i, j).
func (s *DiskStore) At(i, j int) (*mat.CDense, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var n int
	sqlStr := fmt.Sprintf(`SELECT count(1) FROM %s WHERE i=? AND j=?`, tableKey)
	if err := s.db.QueryRowContext(ctx, sqlStr, i, j).Scan(&n); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if n == 0 {
		return nil, errors.Errorf("no matrix at %d %d", i, j)
	}

	m := Zeros(s.rows, s.cols)
	sqlStr = fmt.Sprintf(`SELECT r, c, re, im FROM %s WHERE i=? AND j=?`, tableMatrix)
	rows, err := s.db.QueryContext(ctx, sqlStr, i, j)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var r, c int
		var re, im float64
		if err := rows.Scan(&r, &c, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		m.Set(r, c, complex(re, im))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

// Len returns the number of stored matrices.
func (s *DiskStore) Len() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf("SELECT count(1) FROM %s", tableKey)
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

// NumNonZero returns the number of stored nonzero entries across all matrices.
func (s *DiskStore) NumNonZero() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf("SELECT count(1) FROM %s", tableMatrix)
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
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
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableMatrix),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableKey),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER, r INTEGER, c INTEGER, re REAL, im REAL, PRIMARY KEY (i, j, r, c)) STRICT`, tableMatrix),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER, PRIMARY KEY (i, j)) STRICT`, tableKey),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
