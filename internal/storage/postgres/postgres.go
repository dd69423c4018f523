package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/digest/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mobile_no TEXT NOT NULL UNIQUE,
	topics JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS digests (
	id TEXT PRIMARY KEY,
	mobile_no TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL,
	time_period TEXT NOT NULL,
	summary TEXT NOT NULL,
	articles JSONB NOT NULL,
	total_results INTEGER NOT NULL,
	enriched INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS digests_topic_created ON digests (topic, created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) CreateUser(ctx context.Context, u *storage.User) error {
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
		return fmt.Errorf("postgres: encode topics: %w", err)
	}

	tag, err := b.pool.Exec(ctx, `
	INSERT INTO users (id, name, mobile_no, topics, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (mobile_no) DO NOTHING`,
		u.ID, u.Name, u.MobileNo, topicsJSON, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrUserExists, u.MobileNo)
	}
	return nil
}

func (b *postgresBackend) GetUser(ctx context.Context, mobileNo string) (*storage.User, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT id, name, mobile_no, topics, created_at, updated_at FROM users WHERE mobile_no = $1`, mobileNo)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUserNotFound, mobileNo)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return u, nil
}

func (b *postgresBackend) UpdateTopics(ctx context.Context, mobileNo string, topics []string) (*storage.User, error) {
	topics, err := storage.CleanTopics(topics)
	if err != nil {
		return nil, err
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode topics: %w", err)
	}

	row := b.pool.QueryRow(ctx, `
	UPDATE users SET topics = $1, updated_at = $2 WHERE mobile_no = $3
	RETURNING id, name, mobile_no, topics, created_at, updated_at`,
		topicsJSON, time.Now().UTC(), mobileNo)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUserNotFound, mobileNo)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update topics: %w", err)
	}
	return u, nil
}

func (b *postgresBackend) ListUsers(ctx context.Context) ([]*storage.User, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, name, mobile_no, topics, created_at, updated_at FROM users ORDER BY created_at, mobile_no`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var users []*storage.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list users: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	return users, nil
}

func (b *postgresBackend) SaveDigest(ctx context.Context, d *storage.DigestRecord) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = d.CreatedAt.UTC()

	articlesJSON, err := json.Marshal(d.Articles)
	if err != nil {
		return fmt.Errorf("postgres: encode articles: %w", err)
	}

	_, err = b.pool.Exec(ctx, `
	INSERT INTO digests (
		id, mobile_no, topic, time_period, summary, articles, total_results, enriched, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.MobileNo, d.Topic, d.Window, d.Summary, articlesJSON,
		d.TotalResults, d.Enriched, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert digest: %w", err)
	}
	return nil
}

func (b *postgresBackend) QueryDigests(ctx context.Context, filter storage.Filter) ([]*storage.DigestRecord, error) {
	query := `SELECT id, mobile_no, topic, time_period, summary, articles, total_results, enriched, created_at FROM digests WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Topic != "" {
		query += fmt.Sprintf(` AND topic = $%d`, paramCount)
		args = append(args, filter.Topic)
		paramCount++
	}
	if filter.MobileNo != "" {
		query += fmt.Sprintf(` AND mobile_no = $%d`, paramCount)
		args = append(args, filter.MobileNo)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query digests: %w", err)
	}
	defer rows.Close()

	var results []*storage.DigestRecord
	for rows.Next() {
		var d storage.DigestRecord
		var articlesJSON []byte

		err := rows.Scan(
			&d.ID, &d.MobileNo, &d.Topic, &d.Window, &d.Summary, &articlesJSON,
			&d.TotalResults, &d.Enriched, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan digest: %w", err)
		}
		if err := json.Unmarshal(articlesJSON, &d.Articles); err != nil {
			return nil, fmt.Errorf("postgres: decode articles: %w", err)
		}
		results = append(results, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query digests: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func scanUser(row pgx.Row) (*storage.User, error) {
	var u storage.User
	var topicsJSON []byte
	if err := row.Scan(&u.ID, &u.Name, &u.MobileNo, &topicsJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(topicsJSON, &u.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	return &u, nil
}
