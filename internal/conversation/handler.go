// Package conversation is the chat front of the responder: it filters the
// incoming text, routes answers to pending teach questions, records the
// exchange in memory and feeds auto-training.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-khaled/internal/responder"
	"ai-khaled/internal/storage"
	"ai-khaled/internal/store"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrMissingField = errors.New("session id, question and answer are required")
)

type Responder interface {
	Resolve(ctx context.Context, text, sessionID string) responder.Reply
	IsWaitingForAnswer(sessionID string) bool
	DiscardPending(sessionID string) bool
	ResolvePending(ctx context.Context, sessionID, answer string) (string, error)
	SaveLearnedPair(ctx context.Context, question, answer, sessionID string) (bool, error)
}

type Memory interface {
	Session(id string) (store.Session, bool)
	AppendMessage(sessionID string, msg store.Message) (string, error)
	SetAwaiting(sessionID, question string) error
}

type Dataset interface {
	Contains(ctx context.Context, p store.Pair) bool
	Append(ctx context.Context, p store.Pair) error
}

type Flags interface {
	Load() store.Flags
}

type SessionMarker interface {
	Set(id string) error
}

type Retrainer interface {
	Trigger()
}

type Journal interface {
	AppendInteraction(event storage.Event) error
}

// Result is the outcome of one handled message.
type Result struct {
	Reply     string
	SessionID string
	Stage     responder.Stage
	// Learned is set when the message taught the bot a new pair.
	Learned bool
}

type Handler struct {
	responder   Responder
	memory      Memory
	dataset     Dataset
	flags       Flags
	lastSession SessionMarker
	retrain     Retrainer
	filter      *Filter
	journal     Journal
	log         zerolog.Logger
	now         func() time.Time
}

// NewHandler wires a handler. retrain may be nil.
func NewHandler(r Responder, memory Memory, dataset Dataset, flags Flags, lastSession SessionMarker, retrain Retrainer, filter *Filter, log zerolog.Logger) *Handler {
	if filter == nil {
		filter = NewFilter(DefaultBlockedWords)
	}
	return &Handler{
		responder:   r,
		memory:      memory,
		dataset:     dataset,
		flags:       flags,
		lastSession: lastSession,
		retrain:     retrain,
		filter:      filter,
		log:         log.With().Str("component", "conversation").Logger(),
		now:         time.Now,
	}
}

// WithJournal records every handled message in j.
func (h *Handler) WithJournal(j Journal) *Handler {
	h.journal = j
	return h
}

// Handle answers one user message in sessionID, which defaults to a fresh id.
func (h *Handler) Handle(ctx context.Context, sessionID, text string) (Result, error) {
	text = h.filter.Clean(text)
	res, err := h.handle(ctx, sessionID, text)
	if err == nil && h.journal != nil {
		ev := storage.Event{
			Timestamp:   h.now().UTC(),
			SessionID:   res.SessionID,
			UserMessage: text,
			Reply:       res.Reply,
			Stage:       string(res.Stage),
			Learned:     res.Learned,
		}
		if jerr := h.journal.AppendInteraction(ev); jerr != nil {
			h.log.Warn().Err(jerr).Msg("failed to journal interaction")
		}
	}
	return res, err
}

func (h *Handler) handle(ctx context.Context, sessionID, text string) (Result, error) {
	if text == "" {
		return Result{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = store.NewSessionID(h.now())
	}
	sess, known := h.memory.Session(sessionID)
	if !known {
		if err := h.lastSession.Set(sessionID); err != nil {
			h.log.Warn().Err(err).Msg("failed to store last session id")
		}
	}

	if known && sess.AwaitingAnswer != "" {
		return h.answerLegacy(ctx, sessionID, sess.AwaitingAnswer, text)
	}

	if h.responder.IsWaitingForAnswer(sessionID) {
		msg, err := h.responder.ResolvePending(ctx, sessionID, text)
		if err != nil {
			h.log.Warn().Err(err).Str("session", sessionID).Msg("teach answer not saved")
			return Result{Reply: msg, SessionID: sessionID, Stage: responder.StageTeach}, nil
		}
		h.record(sessionID, text, msg)
		return Result{Reply: msg, SessionID: sessionID, Stage: responder.StageTeach, Learned: true}, nil
	}

	r := h.responder.Resolve(ctx, text, sessionID)
	res := Result{Reply: r.Text, SessionID: sessionID, Stage: r.Stage}
	if r.Stage == responder.StageTeach {
		return res, nil
	}

	h.record(sessionID, text, r.Text)

	flags := h.flags.Load()
	if flags.Bool(store.FlagAutoTrain) {
		p, ok := store.Pair{Question: text, Answer: r.Text}.Trimmed()
		if ok && !h.dataset.Contains(ctx, p) {
			err := h.dataset.Append(ctx, p)
			switch {
			case err == nil:
				h.log.Info().Str("question", text).Msg("auto-saved pair")
				if flags.Bool(store.FlagAutoRetrain) && h.retrain != nil {
					h.retrain.Trigger()
				}
			case !errors.Is(err, store.ErrDuplicatePair):
				h.log.Warn().Err(err).Msg("auto-train append failed")
			}
		}
	}
	return res, nil
}

// answerLegacy handles sessions carrying the awaiting_answer marker written
// by older versions of memory.json.
func (h *Handler) answerLegacy(ctx context.Context, sessionID, question, answer string) (Result, error) {
	if err := h.memory.SetAwaiting(sessionID, ""); err != nil {
		return Result{}, fmt.Errorf("clear awaiting marker: %w", err)
	}
	h.responder.DiscardPending(sessionID)
	saved, err := h.responder.SaveLearnedPair(ctx, question, answer, sessionID)
	if err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("legacy teach answer not saved")
		return Result{Reply: responder.SaveFailedMessage, SessionID: sessionID, Stage: responder.StageTeach}, nil
	}
	return Result{Reply: responder.LearnedMessage, SessionID: sessionID, Stage: responder.StageTeach, Learned: saved}, nil
}

func (h *Handler) record(sessionID, userText, botText string) {
	msg := store.Message{Timestamp: h.now().Unix(), UserText: userText, BotText: botText}
	if _, err := h.memory.AppendMessage(sessionID, msg); err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("failed to record turn")
	}
}

// Teach stores an explicit question/answer pair for sessionID.
func (h *Handler) Teach(ctx context.Context, sessionID, question, answer string) (bool, error) {
	if sessionID == "" || strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return false, ErrMissingField
	}
	saved, err := h.responder.SaveLearnedPair(ctx, question, answer, sessionID)
	if err != nil {
		return false, fmt.Errorf("teach: %w", err)
	}
	return saved, nil
}
