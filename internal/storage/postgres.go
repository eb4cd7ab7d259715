package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/insight-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, username string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`,
		username)
	if err != nil {
		return 0, fmt.Errorf("error upserting user: %v", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1`,
		username).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error getting user id: %v", err)
	}

	return id, nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, userID int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, message) VALUES ($1, $2)`,
		userID, text)
	if err != nil {
		return fmt.Errorf("error saving message: %v", err)
	}

	return nil
}

// SaveTurn runs the user upsert and the message insert in a single
// transaction so a failure between the two never leaves an orphaned
// message reference.
func (s *PostgresStorage) SaveTurn(ctx context.Context, username, text string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`,
		username)
	if err != nil {
		return 0, fmt.Errorf("error upserting user: %v", err)
	}

	var userID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1`,
		username).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("error getting user id: %v", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (user_id, message) VALUES ($1, $2)`,
		userID, text)
	if err != nil {
		return 0, fmt.Errorf("error saving message: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing turn: %v", err)
	}

	return userID, nil
}

func (s *PostgresStorage) DistinctUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT username FROM users`)
	if err != nil {
		return nil, fmt.Errorf("error querying usernames: %v", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("error scanning username: %v", err)
		}
		usernames = append(usernames, username)
	}

	return usernames, rows.Err()
}

func (s *PostgresStorage) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting users: %v", err)
	}

	return count, nil
}

func (s *PostgresStorage) FindUserID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1`,
		username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error finding user: %v", err)
	}

	return id, nil
}

func (s *PostgresStorage) MessagesSince(ctx context.Context, userID int64, start, end time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, timestamp
		FROM messages
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PostgresStorage) AllMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, timestamp
		FROM messages
		WHERE user_id = $1
		ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PostgresStorage) TopMessages(ctx context.Context, limit int) ([]models.MessageCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message, COUNT(*)
		FROM messages
		GROUP BY message
		ORDER BY COUNT(*) DESC, message ASC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("error querying top messages: %v", err)
	}
	defer rows.Close()

	var counts []models.MessageCount
	for rows.Next() {
		var mc models.MessageCount
		if err := rows.Scan(&mc.Text, &mc.Count); err != nil {
			return nil, fmt.Errorf("error scanning top message: %v", err)
		}
		counts = append(counts, mc)
	}

	return counts, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.UserID, &msg.Text, &msg.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
