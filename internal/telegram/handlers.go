package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-khaled/internal/conversation"
	"ai-khaled/internal/maintenance"
	"ai-khaled/internal/responder"
)

const (
	adminOnlyText  = "الأمر ده للأدمن بس."
	teachUsageText = "Usage: /teach <question> | <answer>"
	datasetPreview = 10
)

// handleCommand
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, b.greeting())
		return
	case "teach":
		b.handleTeach(ctx, msg)
		return
	}

	// admin-only commands
	if msg.From == nil || msg.From.ID != b.adminUserID {
		b.sendMessage(msg.Chat.ID, adminOnlyText)
		return
	}
	switch msg.Command() {
	case "stats":
		report := b.admin.Stats(ctx).Report() + "\n" + b.admin.DailyStats(b.now()).Report()
		b.sendMessage(msg.Chat.ID, report)
	case "backup":
		files, err := b.admin.Backup()
		if err != nil {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Backup failed: %v", err))
			return
		}
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Backup created: %d files\n%s", len(files), strings.Join(files, "\n")))
	case "retrain":
		if b.retrain == nil {
			b.sendMessage(msg.Chat.ID, "Retraining is not configured")
			return
		}
		b.retrain.Trigger()
		b.sendMessage(msg.Chat.ID, "Retraining started")
	case "reset":
		if err := b.admin.Reset(ctx, strings.TrimSpace(msg.CommandArguments())); err != nil {
			if errors.Is(err, maintenance.ErrConfirmationRequired) {
				b.sendMessage(msg.Chat.ID, "Usage: /reset yes")
				return
			}
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Reset failed: %v", err))
			return
		}
		b.sendMessage(msg.Chat.ID, "Memory and dataset cleared")
	case "config":
		b.handleConfig(msg)
	case "dataset":
		limit := datasetPreview
		if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				b.sendMessage(msg.Chat.ID, "Usage: /dataset [limit]")
				return
			}
			limit = n
		}
		total, pairs := b.admin.ListPairs(ctx, limit)
		var bld strings.Builder
		bld.WriteString(fmt.Sprintf("Dataset: %d pairs\n", total))
		for _, p := range pairs {
			bld.WriteString(fmt.Sprintf("- %s → %s\n", p.Question, p.Answer))
		}
		b.sendMessage(msg.Chat.ID, bld.String())
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command")
	}
}

func (b *Bot) greeting() string {
	if b.now().Hour() < 12 {
		return "صباح الخير!"
	}
	return "مساء الخير!"
}

func (b *Bot) handleTeach(ctx context.Context, msg *tgbotapi.Message) {
	q, a, ok := strings.Cut(msg.CommandArguments(), "|")
	if !ok {
		b.sendMessage(msg.Chat.ID, teachUsageText)
		return
	}
	saved, err := b.conv.Teach(ctx, sessionID(msg.Chat.ID), q, a)
	switch {
	case errors.Is(err, conversation.ErrMissingField):
		b.sendMessage(msg.Chat.ID, teachUsageText)
	case err != nil:
		b.log.Error().Err(err).Msg("teach failed")
		b.sendMessage(msg.Chat.ID, responder.SaveFailedMessage)
	case !saved:
		b.sendMessage(msg.Chat.ID, "الإجابة دي محفوظة قبل كده.")
	default:
		b.sendMessage(msg.Chat.ID, responder.LearnedMessage)
	}
}

func (b *Bot) handleConfig(msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		patch, err := maintenance.ParseFlagAssignments(args)
		if err != nil {
			b.sendMessage(msg.Chat.ID, "Usage: /config [key=value ...]")
			return
		}
		if _, err := b.admin.UpdateFlags(patch); err != nil {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Config update failed: %v", err))
			return
		}
	}
	flags := b.admin.Flags()
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var bld strings.Builder
	bld.WriteString("Config:\n")
	for _, k := range keys {
		bld.WriteString(fmt.Sprintf("- %s = %v\n", k, flags[k]))
	}
	b.sendMessage(msg.Chat.ID, bld.String())
}

// handleIncomingMessage
func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	sid := sessionID(msg.Chat.ID)
	b.sendTyping(msg.Chat.ID)
	res, err := b.conv.Handle(ctx, sid, msg.Text)
	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) {
			b.log.Error().Err(err).Str("session", sid).Msg("failed to handle message")
		}
		b.sendMessage(msg.Chat.ID, responder.Apology)
		return
	}
	b.log.Debug().Str("session", sid).Str("stage", string(res.Stage)).Msg("replied")
	b.sendMessage(msg.Chat.ID, res.Reply)
}
