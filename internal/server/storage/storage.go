// Package storage persists watched handles, runtime settings and the status
// change log on SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/dbx"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
)

//go:embed migrations
var migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// AddResult reports a bulk insert.
type AddResult struct {
	Added   int
	Skipped int
}

// Stats counts handles per status.
type Stats struct {
	Total    int
	Occupied int
	Free     int
	Error    int
	Unknown  int
}

// StatusChange is one row of the status log.
type StatusChange struct {
	Handle    string
	Old       handles.Status
	New       handles.Status
	ChangedAt time.Time
}

type Store struct {
	db      *sql.DB
	dialect dbx.Dialect

	// statusMu serialises read-modify-write status updates.
	statusMu sync.Mutex

	now func() time.Time
}

// Open connects to the database, applies migrations and returns the store.
func Open(ctx context.Context, dialect dbx.Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, dialect)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// New wraps an already open database without migrating it.
func New(db *sql.DB, dialect dbx.Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) RunMigrations(ctx context.Context) error {
	sub, err := fs.Sub(migrations, "migrations/"+string(s.dialect))
	if err != nil {
		return err
	}
	gooseDialect := "sqlite3"
	if s.dialect == dbx.Postgres {
		gooseDialect = "postgres"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

// AddBulk normalizes names and inserts the new ones. Duplicates within
// names and names already stored are counted as skipped.
func (s *Store) AddBulk(ctx context.Context, names []string) (AddResult, error) {
	unique, dup := handles.Dedupe(names)
	res := AddResult{Skipped: dup}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := s.q(`INSERT INTO handles (name, status, added_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`)
		now := s.now()
		for _, name := range unique {
			r, err := tx.ExecContext(ctx, query, name, string(handles.StatusUnknown), now)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			n, err := r.RowsAffected()
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			if n > 0 {
				res.Added++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	return res, nil
}

// Remove deletes a handle and reports whether it existed.
func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	r, err := s.db.ExecContext(ctx, s.q(`DELETE FROM handles WHERE name = ?`), handles.Normalize(name))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// Clear deletes every handle and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	r, err := s.db.ExecContext(ctx, `DELETE FROM handles`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return r.RowsAffected()
}

const handleColumns = `name, status, last_checked, notified, added_at`

func scanHandle(sc interface{ Scan(...any) error }) (handles.Handle, error) {
	var (
		h           handles.Handle
		status      string
		lastChecked sql.NullTime
	)
	if err := sc.Scan(&h.Name, &status, &lastChecked, &h.Notified, &h.AddedAt); err != nil {
		return handles.Handle{}, err
	}
	h.Status = handles.ParseStatus(status)
	if lastChecked.Valid {
		t := lastChecked.Time
		h.LastChecked = &t
	}
	return h, nil
}

// List returns all handles, newest first.
func (s *Store) List(ctx context.Context) ([]handles.Handle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+handleColumns+` FROM handles ORDER BY added_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []handles.Handle
	for rows.Next() {
		h, err := scanHandle(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Get returns one handle or common.ErrorNotFound.
func (s *Store) Get(ctx context.Context, name string) (handles.Handle, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+handleColumns+` FROM handles WHERE name = ?`), handles.Normalize(name))
	h, err := scanHandle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return handles.Handle{}, common.ErrorNotFound
		}
		return handles.Handle{}, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

func (s *Store) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// HandleNamesForCheck returns every stored name in insertion order.
func (s *Store) HandleNamesForCheck(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM handles ORDER BY id`)
}

// Free returns the names currently marked free.
func (s *Store) Free(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM handles WHERE status = ? ORDER BY name`, string(handles.StatusFree))
}

// UpdateStatus stores status and the check time for name and returns the
// previous status. A change is appended to the status log. Updates are
// serialised so concurrent writers observe each other's results.
func (s *Store) UpdateStatus(ctx context.Context, name string, status handles.Status) (handles.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: status %q", common.ErrInvalidSetting, status)
	}
	name = handles.Normalize(name)

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	var old handles.Status
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var prev string
		err := tx.QueryRowContext(ctx, s.q(`SELECT status FROM handles WHERE name = ?`), name).Scan(&prev)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		old = handles.ParseStatus(prev)

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			s.q(`UPDATE handles SET status = ?, last_checked = ? WHERE name = ?`),
			string(status), now, name); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if old == status {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO status_log (handle, old_status, new_status, changed_at) VALUES (?, ?, ?, ?)`),
			name, string(old), string(status), now); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return old, nil
}

// MarkNotified flags name as announced to operators.
func (s *Store) MarkNotified(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE handles SET notified = ? WHERE name = ?`), true, handles.Normalize(name))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM handles GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, fmt.Errorf("db error: %w", err)
		}
		st.Total += n
		switch handles.ParseStatus(status) {
		case handles.StatusOccupied:
			st.Occupied += n
		case handles.StatusFree:
			st.Free += n
		case handles.StatusError:
			st.Error += n
		default:
			st.Unknown += n
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("db error: %w", err)
	}
	return st, nil
}

// History returns the latest status changes of name, newest first.
func (s *Store) History(ctx context.Context, name string, limit int) ([]StatusChange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT handle, old_status, new_status, changed_at FROM status_log
		 WHERE handle = ? ORDER BY id DESC LIMIT ?`), handles.Normalize(name), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var (
			c        StatusChange
			old, cur string
		)
		if err := rows.Scan(&c.Handle, &old, &cur, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.Old, c.New = handles.ParseStatus(old), handles.ParseStatus(cur)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// GetSetting returns the stored value of key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM settings WHERE key = ?`), key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("db error: %w", err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", common.ErrInvalidSetting)
	}
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
