package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/insight-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[string]int64
	messages []models.Message
	nextUser int64
	nextMsg  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]int64),
		nextUser: 1,
		nextMsg:  1,
	}
}

func (s *MemoryStorage) UpsertUser(ctx context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertUserLocked(username), nil
}

func (s *MemoryStorage) upsertUserLocked(username string) int64 {
	if id, exists := s.users[username]; exists {
		return id
	}

	id := s.nextUser
	s.nextUser++
	s.users[username] = id
	return id
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, userID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveMessageLocked(userID, text, time.Now())
	return nil
}

func (s *MemoryStorage) saveMessageLocked(userID int64, text string, ts time.Time) {
	s.messages = append(s.messages, models.Message{
		ID:        s.nextMsg,
		UserID:    userID,
		Text:      text,
		Timestamp: ts,
	})
	s.nextMsg++
}

func (s *MemoryStorage) SaveTurn(ctx context.Context, username, text string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := s.upsertUserLocked(username)
	s.saveMessageLocked(userID, text, time.Now())
	return userID, nil
}

func (s *MemoryStorage) DistinctUsernames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usernames := make([]string, 0, len(s.users))
	for username := range s.users {
		usernames = append(usernames, username)
	}

	// Stable order per call
	sort.Strings(usernames)
	return usernames, nil
}

func (s *MemoryStorage) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users), nil
}

func (s *MemoryStorage) FindUserID(ctx context.Context, username string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, exists := s.users[username]; exists {
		return id, nil
	}
	return 0, ErrUserNotFound
}

func (s *MemoryStorage) MessagesSince(ctx context.Context, userID int64, start, end time.Time) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []models.Message
	for _, msg := range s.messages {
		if msg.UserID != userID {
			continue
		}
		if msg.Timestamp.Before(start) || !msg.Timestamp.Before(end) {
			continue
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

func (s *MemoryStorage) AllMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []models.Message
	for _, msg := range s.messages {
		if msg.UserID == userID {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (s *MemoryStorage) TopMessages(ctx context.Context, limit int) ([]models.MessageCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	freq := make(map[string]int)
	for _, msg := range s.messages {
		freq[msg.Text]++
	}

	counts := make([]models.MessageCount, 0, len(freq))
	for text, count := range freq {
		counts = append(counts, models.MessageCount{Text: text, Count: count})
	}

	// Most frequent first, equal frequencies ordered by text
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Text < counts[j].Text
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
