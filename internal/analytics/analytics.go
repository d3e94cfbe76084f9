// Package analytics summarizes the conversation memory.
package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-khaled/internal/store"
)

// QuestionCount is a user message and how often it was asked.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// Stats is the overall usage summary.
type Stats struct {
	Sessions     int             `json:"sessions"`
	Messages     int             `json:"messages"`
	LearnedPairs int             `json:"learned_pairs"`
	TopQuestions []QuestionCount `json:"top_questions"`
	LastSession  string          `json:"last_session"`
}

// DailyStats is the activity of a single day.
type DailyStats struct {
	Date           string         `json:"date"`
	TotalMessages  int            `json:"total_messages"`
	ActiveSessions int            `json:"active_sessions"`
	SessionStats   map[string]int `json:"session_stats"`
}

// Analyze builds Stats from the transcript. Top questions are ordered by
// count, then by first appearance.
func Analyze(t store.Transcript, learnedPairs int, lastSession string, top int) *Stats {
	stats := &Stats{
		Sessions:     len(t.Sessions),
		LearnedPairs: learnedPairs,
		LastSession:  lastSession,
		TopQuestions: []QuestionCount{},
	}
	counts := map[string]int{}
	var order []string
	for _, s := range t.Sessions {
		stats.Messages += len(s.Messages)
		for _, m := range s.Messages {
			if m.UserText == "" {
				continue
			}
			if _, seen := counts[m.UserText]; !seen {
				order = append(order, m.UserText)
			}
			counts[m.UserText]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if top > len(order) {
		top = len(order)
	}
	for _, q := range order[:top] {
		stats.TopQuestions = append(stats.TopQuestions, QuestionCount{Question: q, Count: counts[q]})
	}
	return stats
}

// AnalyzeDay counts the messages exchanged on the day of targetDate.
func AnalyzeDay(t store.Transcript, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		SessionStats: make(map[string]int),
	}
	for _, s := range t.Sessions {
		for _, m := range s.Messages {
			ts := time.Unix(m.Timestamp, 0).In(targetDate.Location())
			if ts.Before(startOfDay) || !ts.Before(endOfDay) || m.UserText == "" {
				continue
			}
			stats.TotalMessages++
			stats.SessionStats[s.ID]++
		}
	}
	stats.ActiveSessions = len(stats.SessionStats)
	return stats
}

// Report renders Stats as a short plain-text message.
func (s *Stats) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sessions: %d\nMessages: %d\nLearned pairs: %d\n", s.Sessions, s.Messages, s.LearnedPairs)
	if s.LastSession != "" {
		fmt.Fprintf(&b, "Last session: %s\n", s.LastSession)
	}
	if len(s.TopQuestions) > 0 {
		b.WriteString("\nTop questions:\n")
		for i, q := range s.TopQuestions {
			fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, q.Question, q.Count)
		}
	}
	return b.String()
}

// Report renders DailyStats as a short plain-text message.
func (ds *DailyStats) Report() string {
	return fmt.Sprintf("%s: %d messages in %d sessions\n", ds.Date, ds.TotalMessages, ds.ActiveSessions)
}

func (s *Stats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
