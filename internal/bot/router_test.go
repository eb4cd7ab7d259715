package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/storage"
	"go.uber.org/zap"
)

type stubChat struct {
	reply string
	err   error
	asked []string
}

func (c *stubChat) Ask(ctx context.Context, prompt string) (string, error) {
	c.asked = append(c.asked, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type failingStore struct {
	storage.Storage
}

func (s *failingStore) SaveTurn(ctx context.Context, username, text string) (int64, error) {
	return 0, errors.New("connection refused")
}

type spyStore struct {
	storage.Storage
	allMessagesCalls int
}

func (s *spyStore) AllMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	s.allMessagesCalls++
	return s.Storage.AllMessages(ctx, userID)
}

func newTestRouter(store storage.Storage, chatClient *stubChat) *Router {
	return NewRouter(store, chatClient, time.UTC, zap.NewNop())
}

func TestHandleTurnForwardsToChat(t *testing.T) {
	store := storage.NewMemoryStorage()
	chatClient := &stubChat{reply: "Hi Alice!"}
	router := newTestRouter(store, chatClient)
	ctx := context.Background()

	reply := router.HandleTurn(ctx, "alice", "Hello")
	if reply != "Hi Alice!" {
		t.Errorf("HandleTurn() = %q, want chat reply", reply)
	}

	// The original casing goes to the chat service
	if len(chatClient.asked) != 1 || chatClient.asked[0] != "Hello" {
		t.Errorf("Chat asked with %v, want [Hello]", chatClient.asked)
	}

	// The persisted copy is lowercased
	userID, err := store.FindUserID(ctx, "alice")
	if err != nil {
		t.Fatalf("FindUserID() error = %v", err)
	}
	messages, err := store.AllMessages(ctx, userID)
	if err != nil {
		t.Fatalf("AllMessages() error = %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Errorf("Persisted messages = %v, want one lowercased entry", messages)
	}
}

func TestHandleTurnFirstMatchWins(t *testing.T) {
	store := storage.NewMemoryStorage()
	chatClient := &stubChat{reply: "should not be used"}
	router := newTestRouter(store, chatClient)

	// Contains both the user-count and the usernames phrase; the
	// usernames trigger is listed first.
	reply := router.HandleTurn(context.Background(), "alice",
		"how many users and who talks to me")

	if !strings.HasPrefix(reply, "Users who have talked to me:") {
		t.Errorf("HandleTurn() = %q, want usernames reply", reply)
	}
	if len(chatClient.asked) != 0 {
		t.Errorf("Chat was asked %v, want no fallback", chatClient.asked)
	}
}

func TestHandleTurnUserCount(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	for _, username := range []string{"alice", "bob", "carol"} {
		if _, err := store.UpsertUser(ctx, username); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}

	router := newTestRouter(store, &stubChat{})
	reply := router.HandleTurn(ctx, "alice", "How many users?")

	want := fmt.Sprintf(replyUserCount, 3)
	if reply != want {
		t.Errorf("HandleTurn() = %q, want %q", reply, want)
	}
}

func TestHandleTurnUsernamesListsEveryone(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	for _, username := range []string{"alice", "bob"} {
		if _, err := store.UpsertUser(ctx, username); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}

	router := newTestRouter(store, &stubChat{})
	reply := router.HandleTurn(ctx, "carol", "WHO TALKS TO ME")

	// carol was persisted by this turn, so all three appear
	want := fmt.Sprintf(replyUsernames, "alice, bob, carol")
	if reply != want {
		t.Errorf("HandleTurn() = %q, want %q", reply, want)
	}
}

func TestHandleHistoryUnknownUser(t *testing.T) {
	store := &spyStore{Storage: storage.NewMemoryStorage()}
	router := newTestRouter(store, &stubChat{})

	reply := router.handleHistory(context.Background(), "ghost")
	if reply != replyWhoAreYou {
		t.Errorf("handleHistory() = %q, want %q", reply, replyWhoAreYou)
	}
	if store.allMessagesCalls != 0 {
		t.Errorf("AllMessages was called %d times, want 0", store.allMessagesCalls)
	}
}

func TestHandleHistoryNoMessages(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	if _, err := store.UpsertUser(ctx, "alice"); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	router := newTestRouter(store, &stubChat{})
	if reply := router.handleHistory(ctx, "alice"); reply != replyNoHistory {
		t.Errorf("handleHistory() = %q, want %q", reply, replyNoHistory)
	}
}

func TestHandleTurnHistory(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	router := newTestRouter(store, &stubChat{reply: "42"})

	router.HandleTurn(ctx, "alice", "What is Go?")
	reply := router.HandleTurn(ctx, "alice", "show all my questions")

	want := fmt.Sprintf(replyHistoryList, "what is go?\nshow all my questions")
	if reply != want {
		t.Errorf("HandleTurn() = %q, want %q", reply, want)
	}
}

func TestHandleTurnYesterdayEmpty(t *testing.T) {
	store := storage.NewMemoryStorage()
	router := newTestRouter(store, &stubChat{})

	// Everything persisted today falls outside the yesterday window
	reply := router.HandleTurn(context.Background(), "alice",
		"what did we talk about yesterday")
	if reply != replyNoYesterday {
		t.Errorf("HandleTurn() = %q, want %q", reply, replyNoYesterday)
	}
}

func TestHandleTurnTopQuestionsLimit(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	userID, _ := store.UpsertUser(ctx, "alice")
	for _, text := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"} {
		if err := store.SaveMessage(ctx, userID, text); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	router := newTestRouter(store, &stubChat{})
	reply := router.HandleTurn(ctx, "alice", "most frequently asked questions")

	body := strings.TrimPrefix(reply, fmt.Sprintf(replyTopQuestions, ""))
	if lines := strings.Split(body, "\n"); len(lines) != 5 {
		t.Errorf("Top questions reply has %d entries, want 5: %q", len(lines), reply)
	}
}

func TestHandleTurnStoreFailure(t *testing.T) {
	chatClient := &stubChat{reply: "unused"}
	router := newTestRouter(&failingStore{Storage: storage.NewMemoryStorage()}, chatClient)

	reply := router.HandleTurn(context.Background(), "alice", "Hello")
	if reply != replyStoreFailure {
		t.Errorf("HandleTurn() = %q, want %q", reply, replyStoreFailure)
	}
	if len(chatClient.asked) != 0 {
		t.Errorf("Chat was asked %v after a store failure", chatClient.asked)
	}
}

func TestHandleTurnChatFailure(t *testing.T) {
	store := storage.NewMemoryStorage()
	router := newTestRouter(store, &stubChat{err: errors.New("network down")})

	reply := router.HandleTurn(context.Background(), "alice", "Hello")
	if reply != replyChatFailure {
		t.Errorf("HandleTurn() = %q, want %q", reply, replyChatFailure)
	}
}

func TestYesterdayWindow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 3, 11, 15, 30, 0, 0, loc)

	start, end := yesterdayWindow(now, loc)

	wantStart := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	if !start.Equal(wantStart) {
		t.Errorf("yesterdayWindow() start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("yesterdayWindow() end = %v, want %v", end, wantEnd)
	}
}

func TestYesterdayWindowCrossesMonth(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, loc)

	start, end := yesterdayWindow(now, loc)

	if start.Day() != 29 || start.Month() != time.February {
		t.Errorf("yesterdayWindow() start = %v, want Feb 29", start)
	}
	if end.Day() != 1 || end.Month() != time.March {
		t.Errorf("yesterdayWindow() end = %v, want Mar 1", end)
	}
}
