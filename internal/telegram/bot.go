// Package telegram exposes the responder as a Telegram bot. Every chat is one
// conversation session.
package telegram

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ai-khaled/internal/analytics"
	"ai-khaled/internal/conversation"
	"ai-khaled/internal/store"
)

type Conversation interface {
	Handle(ctx context.Context, sessionID, text string) (conversation.Result, error)
	Teach(ctx context.Context, sessionID, question, answer string) (bool, error)
}

type Admin interface {
	Stats(ctx context.Context) *analytics.Stats
	DailyStats(day time.Time) *analytics.DailyStats
	Backup() ([]string, error)
	Reset(ctx context.Context, confirm string) error
	ListPairs(ctx context.Context, limit int) (int, []store.Pair)
	Flags() store.Flags
	UpdateFlags(patch map[string]any) (store.Flags, error)
}

type Retrainer interface {
	Trigger()
}

type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	conv        Conversation
	admin       Admin
	retrain     Retrainer
	adminUserID int64
	log         zerolog.Logger
	now         func() time.Time
}

// New connects to the Bot API. admin commands are only accepted from
// adminUserID; retrain may be nil.
func New(botToken string, conv Conversation, admin Admin, retrain Retrainer, adminUserID int64, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, conv, admin, retrain, adminUserID, log)
	b.api = api
	b.log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")
	return b, nil
}

func newBot(s sender, conv Conversation, admin Admin, retrain Retrainer, adminUserID int64, log zerolog.Logger) *Bot {
	return &Bot{
		s:           s,
		conv:        conv,
		admin:       admin,
		retrain:     retrain,
		adminUserID: adminUserID,
		log:         log.With().Str("component", "telegram").Logger(),
		now:         time.Now,
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if update.Message.IsCommand() {
				b.handleCommand(ctx, update.Message)
				continue
			}
			b.handleIncomingMessage(ctx, update.Message)
		}
	}
}

func sessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}
