// Package telegram exposes the question-answering pipeline through a
// Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/issuepilot/issuepilot/internal/logger"
)

// Answerer answers a free-form question from the indexed knowledge base.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Reindexer rebuilds the knowledge base and returns the number of segments
// indexed.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// PolicyService defines the interface for checking user permissions.
type PolicyService interface {
	CanAsk(userID int64) bool
	CanReindex(userID int64) bool
}

// Bot represents a Telegram bot.
type Bot struct {
	bot           *bot.Bot
	answerer      Answerer
	reindexer     Reindexer
	policyService PolicyService
}

// NewBot creates a new bot instance.
func NewBot(token string, answerer Answerer, reindexer Reindexer, policyService PolicyService) (*Bot, error) {
	b := &Bot{
		answerer:      answerer,
		reindexer:     reindexer,
		policyService: policyService,
	}

	botAPI, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	b.bot = botAPI
	return b, nil
}

// Start starts the bot. It blocks until the context is canceled.
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// handleUpdate handles a Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, tgbot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	message := update.Message
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.policyService.CanAsk(userID) {
		logger.Info("Chat[%d] User[%d]: Rejected message from disallowed user", chatID, userID)
		b.send(ctx, chatID, "Sorry, you are not allowed to use this bot.")
		return
	}

	if message.Text == "" {
		logger.Debug("Chat[%d] User[%d]: Ignored non-text message", chatID, userID)
		return
	}

	if strings.HasPrefix(message.Text, "/") {
		b.handleCommand(ctx, message)
		return
	}

	b.handleQuestion(ctx, message)
}

// handleCommand processes a command message.
func (b *Bot) handleCommand(ctx context.Context, message *models.Message) {
	command := strings.Split(message.Text, " ")[0]
	command = strings.TrimPrefix(command, "/")
	chatID := message.Chat.ID
	userID := message.From.ID
	logger.Info("Chat[%d] User[%d]: Received command: /%s", chatID, userID, command)

	switch command {
	case "start":
		text := "Hello! Ask me anything about the project's issues and pull requests."
		text += "\n\nCommands:"
		text += "\n/help - Show this help message"
		text += "\n/reindex - Rebuild the knowledge base (admins only)"
		b.send(ctx, chatID, text)

	case "help":
		text := "Send me a question in plain text and I will answer it from the indexed issues."
		text += "\n\nCommands:"
		text += "\n/start - Start the bot"
		text += "\n/help - Show this help message"
		text += "\n/reindex - Rebuild the knowledge base (admins only)"
		b.send(ctx, chatID, text)

	case "reindex":
		if !b.policyService.CanReindex(userID) {
			b.send(ctx, chatID, "Only admins can rebuild the index.")
			return
		}

		b.send(ctx, chatID, "Rebuilding the knowledge base, this may take a while...")
		n, err := b.reindexer.Reindex(ctx)
		if err != nil {
			logger.Error("Chat[%d]: Reindex failed: %v", chatID, err)
			b.send(ctx, chatID, "Reindex failed: "+err.Error())
			return
		}
		b.send(ctx, chatID, fmt.Sprintf("Done. Indexed %d segments.", n))

	default:
		b.send(ctx, chatID, "Unknown command. Try /help.")
	}
}

// handleQuestion runs a plain-text message through the pipeline and replies
// with the generated answer.
func (b *Bot) handleQuestion(ctx context.Context, message *models.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID
	logger.Info("Chat[%d] User[%d]: Question received", chatID, userID)

	answer, err := b.answerer.Answer(ctx, message.Text)
	if err != nil {
		logger.Error("Chat[%d]: Failed to answer question: %v", chatID, err)
		b.send(ctx, chatID, "Sorry, I couldn't answer that: "+err.Error())
		return
	}

	b.send(ctx, chatID, answer)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	_, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		logger.Error("Chat[%d]: Failed to send message: %v", chatID, err)
	}
}
