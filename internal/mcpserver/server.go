// Package mcpserver exposes the responder as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"ai-khaled/internal/analytics"
	"ai-khaled/internal/conversation"
	"ai-khaled/internal/responder"
)

type GenerateReplyParams struct {
	Text      string `json:"text" mcp:"user message"`
	SessionID string `json:"session_id,omitempty" mcp:"conversation session id"`
}

type ChatParams struct {
	Text      string `json:"text" mcp:"user message"`
	SessionID string `json:"session_id,omitempty" mcp:"conversation session id; a new one is created when empty"`
}

type SessionParams struct {
	SessionID string `json:"session_id" mcp:"conversation session id"`
}

type ResolvePendingParams struct {
	SessionID string `json:"session_id" mcp:"session that was asked to teach"`
	Answer    string `json:"answer" mcp:"correct answer for the pending question"`
}

type SavePairParams struct {
	Question  string `json:"question" mcp:"question text"`
	Answer    string `json:"answer" mcp:"answer text"`
	SessionID string `json:"session_id,omitempty" mcp:"session to record the pair in"`
}

type StatsParams struct{}

type Responder interface {
	Resolve(ctx context.Context, text, sessionID string) responder.Reply
	IsWaitingForAnswer(sessionID string) bool
	ResolvePending(ctx context.Context, sessionID, answer string) (string, error)
	SaveLearnedPair(ctx context.Context, question, answer, sessionID string) (bool, error)
}

type Conversation interface {
	Handle(ctx context.Context, sessionID, text string) (conversation.Result, error)
}

type StatsSource interface {
	Stats(ctx context.Context) *analytics.Stats
}

// Tools implements the tool handlers.
type Tools struct {
	responder Responder
	conv      Conversation
	stats     StatsSource
	log       zerolog.Logger
}

func NewTools(r Responder, conv Conversation, stats StatsSource, log zerolog.Logger) *Tools {
	return &Tools{responder: r, conv: conv, stats: stats, log: log.With().Str("component", "mcp").Logger()}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ai-khaled-responder-mcp",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_reply",
		Description: "Resolves a reply through cache, knowledge base, memory, dataset and model; asks to be taught when nothing matches",
	}, t.GenerateReply)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Handles a chat message like the bot does: filters it, answers pending teach questions, records the turn",
	}, t.Chat)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "is_waiting",
		Description: "Reports whether a session has an unanswered teach question",
	}, t.IsWaiting)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_pending",
		Description: "Saves the answer for the pending teach question of a session",
	}, t.ResolvePending)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_pair",
		Description: "Stores a learned question/answer pair",
	}, t.SavePair)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Returns usage statistics as JSON",
	}, t.Stats)
	return server
}

func textResult(text string, meta map[string]interface{}) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		Meta:    meta,
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func (t *Tools) GenerateReply(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GenerateReplyParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	r := t.responder.Resolve(ctx, args.Text, args.SessionID)
	meta := map[string]interface{}{"stage": string(r.Stage)}
	if r.SessionID != "" {
		meta["session_id"] = r.SessionID
	}
	return textResult(r.Text, meta), nil
}

func (t *Tools) Chat(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ChatParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	res, err := t.conv.Handle(ctx, args.SessionID, args.Text)
	if errors.Is(err, conversation.ErrEmptyMessage) {
		return errorResult("text is required"), nil
	}
	if err != nil {
		t.log.Error().Err(err).Msg("chat failed")
		return errorResult("chat failed: %v", err), nil
	}
	return textResult(res.Reply, map[string]interface{}{
		"stage":      string(res.Stage),
		"session_id": res.SessionID,
		"learned":    res.Learned,
	}), nil
}

func (t *Tools) IsWaiting(_ context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	id := strings.TrimSpace(params.Arguments.SessionID)
	if id == "" {
		return errorResult("session_id is required"), nil
	}
	waiting := t.responder.IsWaitingForAnswer(id)
	return textResult(fmt.Sprintf("%t", waiting), map[string]interface{}{"waiting": waiting}), nil
}

func (t *Tools) ResolvePending(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ResolvePendingParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	msg, err := t.responder.ResolvePending(ctx, args.SessionID, args.Answer)
	if err != nil {
		t.log.Warn().Err(err).Str("session", args.SessionID).Msg("resolve pending failed")
		res := errorResult("%s", msg)
		res.Meta = map[string]interface{}{"error": err.Error()}
		return res, nil
	}
	return textResult(msg, map[string]interface{}{"saved": true}), nil
}

func (t *Tools) SavePair(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SavePairParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	saved, err := t.responder.SaveLearnedPair(ctx, args.Question, args.Answer, args.SessionID)
	if err != nil {
		return errorResult("save failed: %v", err), nil
	}
	text := "saved"
	if !saved {
		text = "not saved: empty or duplicate pair"
	}
	return textResult(text, map[string]interface{}{"saved": saved}), nil
}

func (t *Tools) Stats(ctx context.Context, _ *mcp.ServerSession, _ *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[any], error) {
	js, err := t.stats.Stats(ctx).ToJSON()
	if err != nil {
		return errorResult("stats failed: %v", err), nil
	}
	return textResult(js, nil), nil
}
