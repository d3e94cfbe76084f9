// Package responder resolves a reply for a user message by walking an ordered
// chain of sources: reply cache, knowledge base, conversation memory, learned
// dataset and the similarity model. When every source misses it asks the user
// to teach it and remembers the question for that session.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-khaled/internal/cache"
	"ai-khaled/internal/metrics"
	"ai-khaled/internal/model"
	"ai-khaled/internal/store"
	"ai-khaled/internal/textsim"
)

const (
	Apology           = "معلش مش قادر أجاوب دلوقتي."
	TeachPrompt       = "🤔 مش متأكد من الإجابة، ممكن تقولّي الإجابة الصح علشان أتعلمها؟"
	LearnedMessage    = "تمام ✅ حفظت الإجابة وهفتكرها المرة الجاية."
	NoPendingMessage  = "ما كانش فيه سؤال مستني إجابة."
	SaveFailedMessage = "محصلش حفظ — ممكن تجرب تاني؟"
)

// Stage names the source a reply came from.
type Stage string

const (
	StageEmpty   Stage = "empty"
	StageCache   Stage = "cache"
	StageKB      Stage = "kb"
	StageMemory  Stage = "memory"
	StageDataset Stage = "dataset"
	StageModel   Stage = "model"
	StageTeach   Stage = "teach"
)

var (
	ErrNoPendingQuestion = errors.New("no pending question for session")
	ErrNotSaved          = errors.New("pair not saved")
)

type KnowledgeBase interface {
	Lookup(text string) (key, reply string, ok bool)
	PutIfAbsent(key, reply string) (bool, error)
}

type Memory interface {
	Load() store.Transcript
	AppendMessage(sessionID string, msg store.Message) (string, error)
}

type Dataset interface {
	Pairs(ctx context.Context) []store.Pair
	Contains(ctx context.Context, p store.Pair) bool
	Append(ctx context.Context, p store.Pair) error
}

type Flags interface {
	Load() store.Flags
}

type PendingTracker interface {
	IsWaiting(sessionID string) bool
	Register(sessionID, question string)
	Take(sessionID string) (string, bool)
}

// RetrainTrigger starts a background model retrain.
type RetrainTrigger interface {
	Trigger()
}

// Deps are the collaborators of a Service. Model and Retrain are optional.
type Deps struct {
	Cache   cache.ReplyCache
	KB      KnowledgeBase
	Memory  Memory
	Dataset Dataset
	Model   model.Predictor
	Pending PendingTracker
	Flags   Flags
	Retrain RetrainTrigger
}

type Options struct {
	RetrieveThreshold    float64
	DatasetThreshold     float64
	KBAutoLearnMaxTokens int
}

func DefaultOptions() Options {
	return Options{RetrieveThreshold: 0.45, DatasetThreshold: 0.5, KBAutoLearnMaxTokens: 5}
}

// Reply is a resolved reply. SessionID is set for teach requests to the
// session the question was registered under.
type Reply struct {
	Text      string
	Stage     Stage
	SessionID string
}

type Service struct {
	deps Deps
	opts Options
	log  zerolog.Logger
	now  func() time.Time
}

func New(deps Deps, opts Options, log zerolog.Logger) *Service {
	return &Service{
		deps: deps,
		opts: opts,
		log:  log.With().Str("component", "responder").Logger(),
		now:  time.Now,
	}
}

// GenerateReply returns the reply text for text.
func (s *Service) GenerateReply(ctx context.Context, text, sessionID string) string {
	return s.Resolve(ctx, text, sessionID).Text
}

// Resolve runs the lookup chain; the first stage that produces a reply wins.
func (s *Service) Resolve(ctx context.Context, text, sessionID string) Reply {
	start := time.Now()
	r := s.resolve(ctx, text, sessionID)
	metrics.RecordReply(string(r.Stage), time.Since(start))
	return r
}

func (s *Service) resolve(ctx context.Context, text, sessionID string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Text: Apology, Stage: StageEmpty}
	}

	if reply, ok := s.deps.Cache.Get(ctx, text); ok && reply != "" {
		s.log.Debug().Str("stage", string(StageCache)).Msg("reply hit")
		return Reply{Text: reply, Stage: StageCache}
	}

	if key, reply, ok := s.deps.KB.Lookup(text); ok && reply != "" {
		s.log.Info().Str("stage", string(StageKB)).Str("key", key).Msg("reply hit")
		return s.hit(ctx, text, reply, StageKB)
	}

	if reply, score, ok := s.fromMemory(text, sessionID); ok {
		s.log.Info().Str("stage", string(StageMemory)).Float64("score", score).Msg("reply hit")
		return s.hit(ctx, text, reply, StageMemory)
	}

	if reply, score, ok := s.fromDataset(ctx, text); ok {
		s.log.Info().Str("stage", string(StageDataset)).Float64("score", score).Msg("reply hit")
		return s.hit(ctx, text, reply, StageDataset)
	}

	if reply, ok := s.predict(ctx, text); ok {
		s.log.Info().Str("stage", string(StageModel)).Msg("reply hit")
		return s.hit(ctx, text, reply, StageModel)
	}

	sid := sessionID
	if sid == "" {
		sid = store.NewSessionID(s.now())
	}
	s.deps.Pending.Register(sid, text)
	s.log.Info().Str("stage", string(StageTeach)).Str("session", sid).Str("question", text).Msg("teach request")
	return Reply{Text: TeachPrompt, Stage: StageTeach, SessionID: sid}
}

func (s *Service) hit(ctx context.Context, text, reply string, stage Stage) Reply {
	s.deps.Cache.Set(ctx, text, reply)
	return Reply{Text: reply, Stage: stage}
}

// fromMemory scores text against every remembered user message, limited to
// sessionID when set. The earliest best match wins.
func (s *Service) fromMemory(text, sessionID string) (string, float64, bool) {
	var (
		best      string
		bestScore float64
		found     bool
	)
	for _, sess := range s.deps.Memory.Load().Sessions {
		if sessionID != "" && sess.ID != sessionID {
			continue
		}
		for _, m := range sess.Messages {
			if sc := textsim.Score(text, m.UserText); sc > bestScore {
				best, bestScore, found = m.BotText, sc, true
			}
		}
	}
	if !found || best == "" || bestScore < s.opts.RetrieveThreshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

func (s *Service) fromDataset(ctx context.Context, text string) (string, float64, bool) {
	var (
		best      string
		bestScore float64
	)
	for _, p := range s.deps.Dataset.Pairs(ctx) {
		if sc := textsim.Score(text, p.Question); sc > bestScore {
			best, bestScore = p.Answer, sc
		}
	}
	if best == "" || bestScore < s.opts.DatasetThreshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

// predict asks the model. Errors and panics count as a miss.
func (s *Service) predict(ctx context.Context, text string) (reply string, ok bool) {
	if s.deps.Model == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordModelError()
			s.log.Warn().Interface("panic", r).Msg("model panicked")
			reply, ok = "", false
		}
	}()
	out, err := s.deps.Model.Predict(ctx, text)
	switch {
	case errors.Is(err, model.ErrNoModel), errors.Is(err, model.ErrNoMatch):
		return "", false
	case err != nil:
		metrics.RecordModelError()
		s.log.Warn().Err(err).Msg("model prediction failed")
		return "", false
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}

// IsWaitingForAnswer reports whether sessionID has an unanswered teach request.
func (s *Service) IsWaitingForAnswer(sessionID string) bool {
	return s.deps.Pending.IsWaiting(sessionID)
}

// DiscardPending drops the pending question of sessionID without saving it.
func (s *Service) DiscardPending(sessionID string) bool {
	_, ok := s.deps.Pending.Take(sessionID)
	return ok
}

// ResolvePending stores answer for the question pending on sessionID. The
// pending entry is consumed before anything is written, so a failed save
// loses it. The returned text is meant for the user in every case.
func (s *Service) ResolvePending(ctx context.Context, sessionID, answer string) (string, error) {
	question, ok := s.deps.Pending.Take(sessionID)
	if !ok {
		return NoPendingMessage, ErrNoPendingQuestion
	}
	saved, err := s.SaveLearnedPair(ctx, question, answer, sessionID)
	if err != nil {
		return SaveFailedMessage, fmt.Errorf("resolve pending: %w", err)
	}
	if !saved {
		return SaveFailedMessage, ErrNotSaved
	}
	return LearnedMessage, nil
}

// SaveLearnedPair appends (question, answer) to the dataset and mirrors it
// into memory and, for short questions, the knowledge base. It reports false
// without error for blank input and for a pair that already exists. Only a
// dataset failure is returned; later writes are best effort.
func (s *Service) SaveLearnedPair(ctx context.Context, question, answer, sessionID string) (bool, error) {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return false, nil
	}
	p := store.Pair{Question: question, Answer: answer}
	if s.deps.Dataset.Contains(ctx, p) {
		metrics.RecordLearned("duplicate")
		s.log.Info().Str("question", question).Msg("pair already exists, skipping save")
		return false, nil
	}
	if err := s.deps.Dataset.Append(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicatePair) {
			metrics.RecordLearned("duplicate")
			return false, nil
		}
		metrics.RecordLearned("failed")
		metrics.RecordStoreWriteFailure("dataset")
		return false, fmt.Errorf("append dataset: %w", err)
	}
	s.log.Info().Str("question", question).Str("answer", answer).Msg("learned pair saved")

	msg := store.Message{Timestamp: s.now().Unix(), UserText: question, BotText: answer}
	if _, err := s.deps.Memory.AppendMessage(sessionID, msg); err != nil {
		metrics.RecordStoreWriteFailure("memory")
		s.log.Warn().Err(err).Msg("failed to add learned pair to memory")
	}

	if len(strings.Fields(question)) <= s.opts.KBAutoLearnMaxTokens {
		if added, err := s.deps.KB.PutIfAbsent(question, answer); err != nil {
			metrics.RecordStoreWriteFailure("kb")
			s.log.Warn().Err(err).Msg("failed to update kb")
		} else if added {
			s.log.Debug().Str("key", question).Msg("kb entry learned")
		}
	}

	s.deps.Cache.Delete(ctx, question)

	if s.deps.Retrain != nil && s.deps.Flags != nil && s.deps.Flags.Load().Bool(store.FlagAutoRetrain) {
		s.deps.Retrain.Trigger()
	}
	metrics.RecordLearned("saved")
	return true, nil
}
