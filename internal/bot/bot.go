package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const welcomeMessage = "Hi! I am your smartest bot. You can ask me anything, for example " +
	"'who talks to me', 'how many users', 'what did we talk about yesterday', " +
	"'show all my questions', 'most frequently asked questions' or any other question you like!"

type Bot struct {
	api    *tgbotapi.BotAPI
	router *Router
	logger *zap.Logger
}

func New(token string, router *Router, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:    api,
		router: router,
		logger: logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	// The bot only understands text
	if message.Text == "" {
		return
	}

	username := message.From.UserName
	if username == "" {
		username = message.From.FirstName
	}

	turnID := uuid.New().String()
	b.logger.Info("Handling turn",
		zap.String("turn_id", turnID),
		zap.String("username", username),
		zap.Int64("chat_id", message.Chat.ID))

	reply := b.router.HandleTurn(ctx, username, message.Text)
	b.sendMessage(message.Chat.ID, reply)
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.sendMessage(message.Chat.ID, welcomeMessage)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Just send me a question as plain text.")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
