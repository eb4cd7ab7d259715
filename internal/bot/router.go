package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/insight-bot/internal/chat"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	replyStoreFailure  = "Sorry, something went wrong on my side. Please try again."
	replyChatFailure   = "Sorry, I can't reach my brain right now. Please try again later."
	replyWhoAreYou     = "Who are you???"
	replyNoYesterday   = "We did not talk yesterday..."
	replyNoHistory     = "We are just starting our conversation..."
	replyUsernames     = "Users who have talked to me: %s"
	replyUserCount     = "Number of users talking to me: %d"
	replyYesterdayList = "Yesterday we talked about:\n%s"
	replyHistoryList   = "Here are all your questions:\n%s"
	replyTopQuestions  = "The five most frequently asked questions:\n%s"
)

const topQuestionsLimit = 5

// Router turns one inbound (username, text) event into exactly one reply
// string, persisting the turn first. It holds no state between turns.
type Router struct {
	store  storage.Storage
	chat   chat.Client
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewRouter(store storage.Storage, chatClient chat.Client, loc *time.Location, logger *zap.Logger) *Router {
	return &Router{
		store:  store,
		chat:   chatClient,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// trigger phrases are tested in order; the first match wins.
var triggers = []struct {
	phrase  string
	handler func(*Router, context.Context, string) string
}{
	{"who talks to me", (*Router).handleUsernames},
	{"how many users", (*Router).handleUserCount},
	{"what did we talk about yesterday", (*Router).handleYesterday},
	{"show all my questions", (*Router).handleHistory},
	{"most frequently asked questions", (*Router).handleTopQuestions},
}

// HandleTurn persists the turn and dispatches it to an analytics handler
// or the chat fallback. It always returns a reply.
func (r *Router) HandleTurn(ctx context.Context, username, text string) string {
	lowered := strings.ToLower(text)

	if _, err := r.store.SaveTurn(ctx, username, lowered); err != nil {
		r.logger.Error("Failed to save turn",
			zap.Error(err),
			zap.String("username", username))
		return replyStoreFailure
	}

	for _, t := range triggers {
		if strings.Contains(lowered, t.phrase) {
			return t.handler(r, ctx, username)
		}
	}

	return r.handleChat(ctx, text)
}

func (r *Router) handleUsernames(ctx context.Context, _ string) string {
	usernames, err := r.store.DistinctUsernames(ctx)
	if err != nil {
		r.logger.Error("Failed to list usernames", zap.Error(err))
		return replyStoreFailure
	}

	return fmt.Sprintf(replyUsernames, strings.Join(usernames, ", "))
}

func (r *Router) handleUserCount(ctx context.Context, _ string) string {
	count, err := r.store.CountUsers(ctx)
	if err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return replyStoreFailure
	}

	return fmt.Sprintf(replyUserCount, count)
}

func (r *Router) handleYesterday(ctx context.Context, username string) string {
	userID, reply := r.resolveUser(ctx, username)
	if reply != "" {
		return reply
	}

	start, end := yesterdayWindow(r.now(), r.loc)
	messages, err := r.store.MessagesSince(ctx, userID, start, end)
	if err != nil {
		r.logger.Error("Failed to get yesterday's messages",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return replyStoreFailure
	}

	if len(messages) == 0 {
		return replyNoYesterday
	}

	return fmt.Sprintf(replyYesterdayList, joinTexts(messages))
}

func (r *Router) handleHistory(ctx context.Context, username string) string {
	userID, reply := r.resolveUser(ctx, username)
	if reply != "" {
		return reply
	}

	messages, err := r.store.AllMessages(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to get message history",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return replyStoreFailure
	}

	if len(messages) == 0 {
		return replyNoHistory
	}

	return fmt.Sprintf(replyHistoryList, joinTexts(messages))
}

func (r *Router) handleTopQuestions(ctx context.Context, _ string) string {
	counts, err := r.store.TopMessages(ctx, topQuestionsLimit)
	if err != nil {
		r.logger.Error("Failed to get top questions", zap.Error(err))
		return replyStoreFailure
	}

	texts := make([]string, len(counts))
	for i, mc := range counts {
		texts[i] = mc.Text
	}

	return fmt.Sprintf(replyTopQuestions, strings.Join(texts, "\n"))
}

// handleChat forwards the original, non-lowercased text to the chat service.
func (r *Router) handleChat(ctx context.Context, text string) string {
	reply, err := r.chat.Ask(ctx, text)
	if err != nil {
		r.logger.Error("Failed to get chat reply", zap.Error(err))
		return replyChatFailure
	}

	return reply
}

// resolveUser looks up the current user's id. The second return value is
// a non-empty reply when the lookup did not produce an id.
func (r *Router) resolveUser(ctx context.Context, username string) (int64, string) {
	userID, err := r.store.FindUserID(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return 0, replyWhoAreYou
	}
	if err != nil {
		r.logger.Error("Failed to find user",
			zap.Error(err),
			zap.String("username", username))
		return 0, replyStoreFailure
	}

	return userID, ""
}

// yesterdayWindow returns the half-open interval [start-of-yesterday,
// start-of-today) in the given location.
func yesterdayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, -1), today
}

func joinTexts(messages []models.Message) string {
	texts := make([]string, len(messages))
	for i, msg := range messages {
		texts[i] = msg.Text
	}
	return strings.Join(texts, "\n")
}
