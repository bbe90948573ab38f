package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_preferences (
    namespace TEXT PRIMARY KEY,
    token TEXT NOT NULL
);
`

// InitPostgres opens a PostgreSQL connection, checks it and creates the
// session table if needed.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// PostgresBackend keeps the session record in a PostgreSQL table, one row per namespace.
type PostgresBackend struct {
	// DB is the database handle for executing queries.
	DB        *sql.DB
	namespace string
}

// NewPostgresBackend creates a PostgresBackend for the given namespace.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresBackend(db *sql.DB, namespace string) *PostgresBackend {
	return &PostgresBackend{DB: db, namespace: namespace}
}

// Load returns the stored token, or "" when the namespace has no row.
func (b *PostgresBackend) Load(ctx context.Context) (string, error) {
	var token string
	err := b.DB.QueryRowContext(
		ctx,
		`SELECT token FROM session_preferences WHERE namespace = $1`,
		b.namespace,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select token: %w", err)
	}
	return token, nil
}

// Save inserts or replaces the token of the namespace.
func (b *PostgresBackend) Save(ctx context.Context, token string) error {
	_, err := b.DB.ExecContext(
		ctx,
		`INSERT INTO session_preferences (namespace, token) VALUES ($1, $2)
		 ON CONFLICT (namespace) DO UPDATE SET token = EXCLUDED.token`,
		b.namespace, token,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// Delete removes the namespace row.
func (b *PostgresBackend) Delete(ctx context.Context) error {
	_, err := b.DB.ExecContext(
		ctx,
		`DELETE FROM session_preferences WHERE namespace = $1`,
		b.namespace,
	)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
