package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ai-khaled/internal/analytics"
	"ai-khaled/internal/conversation"
	"ai-khaled/internal/maintenance"
	"ai-khaled/internal/responder"
	"ai-khaled/internal/store"
)

const adminID = 999

type fakeSender struct {
	sent    []string
	actions []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	sw := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sw.Text)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if a, ok := c.(tgbotapi.ChatActionConfig); ok {
		f.actions = append(f.actions, a.Action)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeConversation struct {
	sessions []string
	result   conversation.Result
	err      error
	taught   [][2]string
}

func (f *fakeConversation) Handle(_ context.Context, sessionID, text string) (conversation.Result, error) {
	f.sessions = append(f.sessions, sessionID)
	return f.result, f.err
}

func (f *fakeConversation) Teach(_ context.Context, _ string, question, answer string) (bool, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return false, conversation.ErrMissingField
	}
	f.taught = append(f.taught, [2]string{strings.TrimSpace(question), strings.TrimSpace(answer)})
	return true, nil
}

type fakeAdmin struct {
	flags  store.Flags
	resets int
}

func (f *fakeAdmin) Stats(context.Context) *analytics.Stats {
	return &analytics.Stats{Sessions: 2, Messages: 5, LearnedPairs: 3}
}

func (f *fakeAdmin) DailyStats(day time.Time) *analytics.DailyStats {
	return &analytics.DailyStats{Date: day.Format("2006-01-02")}
}

func (f *fakeAdmin) Backup() ([]string, error) { return []string{"backups/kb_1.json"}, nil }

func (f *fakeAdmin) Reset(_ context.Context, confirm string) error {
	if confirm != maintenance.ResetConfirmation {
		return maintenance.ErrConfirmationRequired
	}
	f.resets++
	return nil
}

func (f *fakeAdmin) ListPairs(context.Context, int) (int, []store.Pair) {
	return 1, []store.Pair{{Question: "q", Answer: "a"}}
}

func (f *fakeAdmin) Flags() store.Flags { return f.flags }

func (f *fakeAdmin) UpdateFlags(patch map[string]any) (store.Flags, error) {
	for k, v := range patch {
		f.flags[k] = v
	}
	return f.flags, nil
}

type fakeRetrain struct{ calls int }

func (f *fakeRetrain) Trigger() { f.calls++ }

func newTestBot() (*Bot, *fakeSender, *fakeConversation, *fakeAdmin, *fakeRetrain) {
	fs := &fakeSender{}
	conv := &fakeConversation{}
	admin := &fakeAdmin{flags: store.DefaultFlags()}
	rt := &fakeRetrain{}
	b := newBot(fs, conv, admin, rt, adminID, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
	return b, fs, conv, admin, rt
}

func textMsg(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: from}, Chat: &tgbotapi.Chat{ID: 100}, Text: text}
}

func cmdMsg(from int64, text string) *tgbotapi.Message {
	m := textMsg(from, text)
	cmd, _, _ := strings.Cut(text, " ")
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return m
}

func TestIncomingMessage_RepliesWithConversationResult(t *testing.T) {
	b, fs, conv, _, _ := newTestBot()
	conv.result = conversation.Result{Reply: "أهلاً", Stage: responder.StageKB}

	b.handleIncomingMessage(context.Background(), textMsg(1, "hello"))

	if len(fs.sent) != 1 || fs.sent[0] != "أهلاً" {
		t.Fatalf("unexpected sent: %+v", fs.sent)
	}
	if len(conv.sessions) != 1 || conv.sessions[0] != "tg-100" {
		t.Fatalf("unexpected session: %+v", conv.sessions)
	}
	if len(fs.actions) != 1 || fs.actions[0] != tgbotapi.ChatTyping {
		t.Fatalf("expected typing action, got %+v", fs.actions)
	}
}

func TestIncomingMessage_ErrorSendsApology(t *testing.T) {
	b, fs, conv, _, _ := newTestBot()
	conv.err = errors.New("boom")

	b.handleIncomingMessage(context.Background(), textMsg(1, "hello"))

	if len(fs.sent) != 1 || fs.sent[0] != responder.Apology {
		t.Fatalf("expected apology, got %+v", fs.sent)
	}
}

func TestIncomingMessage_IgnoresBlank(t *testing.T) {
	b, fs, conv, _, _ := newTestBot()
	b.handleIncomingMessage(context.Background(), textMsg(1, "  "))
	if len(fs.sent) != 0 || len(conv.sessions) != 0 {
		t.Fatalf("blank message must be ignored: %+v", fs.sent)
	}
}

func TestStartGreets(t *testing.T) {
	b, fs, _, _, _ := newTestBot()
	b.handleCommand(context.Background(), cmdMsg(1, "/start"))
	if len(fs.sent) != 1 || fs.sent[0] != "صباح الخير!" {
		t.Fatalf("unexpected greeting: %+v", fs.sent)
	}
}

func TestTeachCommand(t *testing.T) {
	b, fs, conv, _, _ := newTestBot()
	b.handleCommand(context.Background(), cmdMsg(1, "/teach ما اسمك | خالد"))
	if len(conv.taught) != 1 || conv.taught[0] != [2]string{"ما اسمك", "خالد"} {
		t.Fatalf("unexpected teach: %+v", conv.taught)
	}
	if fs.sent[0] != responder.LearnedMessage {
		t.Fatalf("unexpected reply: %q", fs.sent[0])
	}

	b.handleCommand(context.Background(), cmdMsg(1, "/teach no separator"))
	if fs.sent[1] != teachUsageText {
		t.Fatalf("expected usage, got %q", fs.sent[1])
	}
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	b, fs, _, admin, rt := newTestBot()
	b.handleCommand(context.Background(), cmdMsg(1, "/reset yes"))
	b.handleCommand(context.Background(), cmdMsg(1, "/retrain"))
	if admin.resets != 0 || rt.calls != 0 {
		t.Fatal("non-admin must not run admin commands")
	}
	for _, s := range fs.sent {
		if s != adminOnlyText {
			t.Fatalf("unexpected reply %q", s)
		}
	}
}

func TestAdminCommands(t *testing.T) {
	b, fs, _, admin, rt := newTestBot()
	ctx := context.Background()

	b.handleCommand(ctx, cmdMsg(adminID, "/stats"))
	if !strings.Contains(fs.sent[0], "Learned pairs: 3") || !strings.Contains(fs.sent[0], "2025-01-01") {
		t.Fatalf("unexpected stats: %q", fs.sent[0])
	}

	b.handleCommand(ctx, cmdMsg(adminID, "/reset"))
	if admin.resets != 0 || fs.sent[1] != "Usage: /reset yes" {
		t.Fatalf("reset without confirmation: %q", fs.sent[1])
	}
	b.handleCommand(ctx, cmdMsg(adminID, "/reset yes"))
	if admin.resets != 1 {
		t.Fatal("reset not performed")
	}

	b.handleCommand(ctx, cmdMsg(adminID, "/retrain"))
	if rt.calls != 1 {
		t.Fatal("retrain not triggered")
	}

	b.handleCommand(ctx, cmdMsg(adminID, "/config auto_train=false"))
	if admin.flags.Bool(store.FlagAutoTrain) {
		t.Fatal("flag not updated")
	}
	last := fs.sent[len(fs.sent)-1]
	if !strings.Contains(last, "auto_train = false") {
		t.Fatalf("unexpected config reply: %q", last)
	}

	b.handleCommand(ctx, cmdMsg(adminID, "/dataset 5"))
	last = fs.sent[len(fs.sent)-1]
	if !strings.Contains(last, "Dataset: 1 pairs") || !strings.Contains(last, "q → a") {
		t.Fatalf("unexpected dataset reply: %q", last)
	}

	b.handleCommand(ctx, cmdMsg(adminID, "/backup"))
	last = fs.sent[len(fs.sent)-1]
	if !strings.Contains(last, "backups/kb_1.json") {
		t.Fatalf("unexpected backup reply: %q", last)
	}
}
