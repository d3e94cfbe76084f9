package analytics

import (
	"strings"
	"testing"
	"time"

	"ai-khaled/internal/store"
)

func transcript(day time.Time) store.Transcript {
	return store.Transcript{Sessions: []store.Session{
		{ID: "1", Messages: []store.Message{
			{Timestamp: day.Add(2 * time.Hour).Unix(), UserText: "hello", BotText: "hi"},
			{Timestamp: day.Add(3 * time.Hour).Unix(), UserText: "ما اسمك", BotText: "خالد"},
			{Timestamp: day.AddDate(0, 0, 1).Unix(), UserText: "hello", BotText: "hi"},
		}},
		{ID: "2", Messages: []store.Message{
			{Timestamp: day.Add(5 * time.Hour).Unix(), UserText: "hello", BotText: "hi"},
			{Timestamp: day.Add(6 * time.Hour).Unix(), UserText: "", BotText: "[system]"},
		}},
		{ID: "3"},
	}}
}

func TestAnalyze(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	stats := Analyze(transcript(day), 7, "3", 5)

	if stats.Sessions != 3 {
		t.Errorf("Expected 3 sessions, got %d", stats.Sessions)
	}
	if stats.Messages != 5 {
		t.Errorf("Expected 5 messages, got %d", stats.Messages)
	}
	if stats.LearnedPairs != 7 || stats.LastSession != "3" {
		t.Errorf("unexpected pass-through fields: %+v", stats)
	}
	if len(stats.TopQuestions) != 2 {
		t.Fatalf("Expected 2 top questions, got %d", len(stats.TopQuestions))
	}
	if stats.TopQuestions[0] != (QuestionCount{Question: "hello", Count: 3}) {
		t.Errorf("unexpected top question: %+v", stats.TopQuestions[0])
	}

	if got := Analyze(transcript(day), 0, "", 1); len(got.TopQuestions) != 1 {
		t.Errorf("Expected top to be limited to 1, got %d", len(got.TopQuestions))
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	stats := Analyze(store.Transcript{}, 0, "", 5)
	if stats.Sessions != 0 || stats.Messages != 0 || len(stats.TopQuestions) != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}
	js, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !strings.Contains(js, `"top_questions": []`) {
		t.Errorf("Expected empty top_questions array, got %s", js)
	}
}

func TestAnalyzeDay(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	stats := AnalyzeDay(transcript(day), day.Add(12*time.Hour))

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalMessages != 3 {
		t.Errorf("Expected 3 messages, got %d", stats.TotalMessages)
	}
	if stats.ActiveSessions != 2 {
		t.Errorf("Expected 2 active sessions, got %d", stats.ActiveSessions)
	}
	if stats.SessionStats["1"] != 2 {
		t.Errorf("Expected 2 messages in session 1, got %d", stats.SessionStats["1"])
	}
}

func TestReport(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	report := Analyze(transcript(day), 1, "3", 5).Report()
	for _, want := range []string{"Sessions: 3", "Learned pairs: 1", "Last session: 3", "1. hello (3)"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if !strings.Contains(AnalyzeDay(transcript(day), day).Report(), "3 messages in 2 sessions") {
		t.Error("unexpected daily report")
	}
}
