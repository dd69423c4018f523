package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/digest/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mobile_no TEXT NOT NULL UNIQUE,
	topics TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS digests (
	id TEXT PRIMARY KEY,
	mobile_no TEXT,
	topic TEXT NOT NULL,
	time_period TEXT NOT NULL,
	summary TEXT NOT NULL,
	articles TEXT NOT NULL,
	total_results INTEGER NOT NULL,
	enriched INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS digests_topic_created ON digests (topic, created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent digests
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) CreateUser(ctx context.Context, u *storage.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	topicsJSON, err := json.Marshal(u.Topics)
	if err != nil {
		return fmt.Errorf("sqlite: encode topics: %w", err)
	}

	res, err := b.db.ExecContext(ctx, `
	INSERT INTO users (id, name, mobile_no, topics, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (mobile_no) DO NOTHING`,
		u.ID, u.Name, u.MobileNo, string(topicsJSON), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrUserExists, u.MobileNo)
	}
	return nil
}

func (b *sqliteBackend) GetUser(ctx context.Context, mobileNo string) (*storage.User, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, name, mobile_no, topics, created_at, updated_at FROM users WHERE mobile_no = ?`, mobileNo)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUserNotFound, mobileNo)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get user: %w", err)
	}
	return u, nil
}

func (b *sqliteBackend) UpdateTopics(ctx context.Context, mobileNo string, topics []string) (*storage.User, error) {
	topics, err := storage.CleanTopics(topics)
	if err != nil {
		return nil, err
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode topics: %w", err)
	}

	res, err := b.db.ExecContext(ctx,
		`UPDATE users SET topics = ?, updated_at = ? WHERE mobile_no = ?`,
		string(topicsJSON), time.Now().UTC(), mobileNo)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update topics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrUserNotFound, mobileNo)
	}
	return b.GetUser(ctx, mobileNo)
}

func (b *sqliteBackend) ListUsers(ctx context.Context) ([]*storage.User, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, name, mobile_no, topics, created_at, updated_at FROM users ORDER BY created_at, mobile_no`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	defer rows.Close()

	var users []*storage.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list users: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	return users, nil
}

func (b *sqliteBackend) SaveDigest(ctx context.Context, d *storage.DigestRecord) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = d.CreatedAt.UTC()

	articlesJSON, err := json.Marshal(d.Articles)
	if err != nil {
		return fmt.Errorf("sqlite: encode articles: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
	INSERT INTO digests (
		id, mobile_no, topic, time_period, summary, articles, total_results, enriched, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.MobileNo, d.Topic, d.Window, d.Summary, string(articlesJSON),
		d.TotalResults, d.Enriched, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert digest: %w", err)
	}
	return nil
}

func (b *sqliteBackend) QueryDigests(ctx context.Context, filter storage.Filter) ([]*storage.DigestRecord, error) {
	query := `SELECT id, mobile_no, topic, time_period, summary, articles, total_results, enriched, created_at FROM digests WHERE 1=1`
	var args []any

	if filter.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, filter.Topic)
	}
	if filter.MobileNo != "" {
		query += ` AND mobile_no = ?`
		args = append(args, filter.MobileNo)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query digests: %w", err)
	}
	defer rows.Close()

	var results []*storage.DigestRecord
	for rows.Next() {
		var d storage.DigestRecord
		var mobileNo sql.NullString
		var articlesJSON string

		err := rows.Scan(
			&d.ID, &mobileNo, &d.Topic, &d.Window, &d.Summary, &articlesJSON,
			&d.TotalResults, &d.Enriched, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan digest: %w", err)
		}
		d.MobileNo = mobileNo.String
		if err := json.Unmarshal([]byte(articlesJSON), &d.Articles); err != nil {
			return nil, fmt.Errorf("sqlite: decode articles: %w", err)
		}
		results = append(results, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query digests: %w", err)
	}
	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*storage.User, error) {
	var u storage.User
	var topicsJSON string
	if err := s.Scan(&u.ID, &u.Name, &u.MobileNo, &topicsJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topicsJSON), &u.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return &u, nil
}
