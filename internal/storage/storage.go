package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/insight-bot/internal/models"
)

// ErrUserNotFound is returned by FindUserID when the username has never
// sent a message. It is a negative lookup result, not a store failure.
var ErrUserNotFound = errors.New("user not found")

type Storage interface {
	// UpsertUser inserts the username if absent (conflict ignored) and
	// returns the existing or newly created id.
	UpsertUser(ctx context.Context, username string) (int64, error)

	// SaveMessage inserts a message with a server-assigned timestamp.
	SaveMessage(ctx context.Context, userID int64, text string) error

	// SaveTurn persists the user upsert and the message insert as one
	// atomic unit and returns the user's id.
	SaveTurn(ctx context.Context, username, text string) (int64, error)

	DistinctUsernames(ctx context.Context) ([]string, error)
	CountUsers(ctx context.Context) (int, error)
	FindUserID(ctx context.Context, username string) (int64, error)

	// MessagesSince returns the user's messages in the half-open
	// interval [start, end), ordered by timestamp.
	MessagesSince(ctx context.Context, userID int64, start, end time.Time) ([]models.Message, error)

	AllMessages(ctx context.Context, userID int64) ([]models.Message, error)

	// TopMessages aggregates identical message texts across all users,
	// most frequent first, ties ordered by text.
	TopMessages(ctx context.Context, limit int) ([]models.MessageCount, error)

	Close() error
}
