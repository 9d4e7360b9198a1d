// Package sqlite persists users, alert rules and chat history in a local
// SQLite database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	threshold  INTEGER NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS alerts_user_id ON alerts(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user       TEXT NOT NULL,
	text       TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// Store is the SQLite-backed alert store, user directory and chat history.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not enable WAL mode", "error", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// --- users ---

// UpsertUser creates the user or updates the name of an existing email.
func (s *Store) UpsertUser(ctx context.Context, email, name string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name
		RETURNING id, email, name`,
		email, name, formatTime(s.now()),
	).Scan(&u.ID, &u.Email, &u.Name)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.queryUser(ctx, `SELECT id, email, name FROM users WHERE email = ?`, email)
}

// DefaultOwner returns the first registered user. Scan-created alerts are
// attributed to it.
func (s *Store) DefaultOwner(ctx context.Context) (domain.User, error) {
	return s.queryUser(ctx, `SELECT id, email, name FROM users ORDER BY id LIMIT 1`)
}

func (s *Store) queryUser(ctx context.Context, query string, args ...any) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// --- alerts ---

// CreateAlert inserts a and returns it with its id and creation time set.
func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	a.CreatedAt = s.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (name, threshold, enabled, user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Threshold, a.Enabled, a.UserID, formatTime(a.CreatedAt),
	)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return domain.Alert{}, fmt.Errorf("alert id: %w", err)
	}
	s.logger.Debug("alert created", "alert_id", a.ID, "user_id", a.UserID, "name", a.Name)
	return a, nil
}

// ListAlerts returns the user's alerts in creation order.
func (s *Store) ListAlerts(ctx context.Context, userID int64) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, threshold, enabled, user_id, created_at FROM alerts WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

// SetAlertEnabled toggles an alert and returns its updated state.
func (s *Store) SetAlertEnabled(ctx context.Context, id int64, enabled bool) (domain.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE alerts SET enabled = ? WHERE id = ?
		RETURNING id, name, threshold, enabled, user_id, created_at`,
		enabled, id,
	)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	return a, err
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(r rowScanner) (domain.Alert, error) {
	var (
		a       domain.Alert
		created string
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Threshold, &a.Enabled, &a.UserID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Alert{}, err
		}
		return domain.Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

// --- chat history ---

// SaveMessage persists a chat line and returns it with id and creation time.
func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	m.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user, text, timestamp, created_at) VALUES (?, ?, ?, ?)`,
		m.User, m.Text, m.Timestamp, formatTime(m.CreatedAt),
	)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("message id: %w", err)
	}
	return m, nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return []domain.ChatMessage{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, text, timestamp, created_at FROM (
			SELECT * FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m       domain.ChatMessage
			created string
		)
		if err := rows.Scan(&m.ID, &m.User, &m.Text, &m.Timestamp, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
