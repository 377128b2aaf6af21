package internal

import (
	"time"
)

// CreateTestResult creates a tabular result with one sample row
func CreateTestResult(objective, query, platform string) TabularResult {
	return TabularResult{
		Objective: objective,
		Query:     query,
		Platform:  platform,
		Columns:   []string{"month", "revenue"},
		Rows: []Record{
			{"month": "2024-01", "revenue": 120.5},
			{"month": "2024-02", "revenue": 98.0},
		},
	}
}

// CreateTestSnapshot creates a snapshot with a short conversation, one result and one suggestion
func CreateTestSnapshot(sessionID string) Snapshot {
	now := time.Now()
	return Snapshot{
		SessionID:  sessionID,
		Connection: ConnectionOpen,
		Transcript: []TranscriptEntry{
			{ID: "entry-1", Role: RoleUser, Content: "How did revenue change?", CreatedAt: now},
			{
				ID:               "entry-2",
				Role:             RoleMilestone,
				Content:          "Generated 1 query",
				Step:             "generate_queries",
				GeneratedQueries: []GeneratedQuery{{Objective: "Monthly revenue", Query: "SELECT month, revenue FROM sales"}},
				Reasoning:        "Revenue is tracked monthly",
				CreatedAt:        now,
			},
			{ID: "entry-3", Role: RoleAssistant, Content: "Revenue dipped in February.", CreatedAt: now},
		},
		Results: []TabularResult{
			CreateTestResult("Monthly revenue", "SELECT month, revenue FROM sales", "postgres"),
		},
		Suggestions: []ChartSuggestion{
			{Objective: "Monthly revenue", Type: "bar", Title: "Revenue by month", Columns: &SuggestionColumns{X: "month", Y: ColumnList{"revenue"}}},
		},
	}
}

// CreateTestSnapshotWithEntries creates a snapshot with custom transcript entries
func CreateTestSnapshotWithEntries(sessionID string, entries []TranscriptEntry) Snapshot {
	return Snapshot{
		SessionID:  sessionID,
		Connection: ConnectionOpen,
		Transcript: entries,
	}
}

// NewConnectedSession returns a chat session that is open and has a session id
func NewConnectedSession(sessionID string) *ChatSession {
	s := NewChatSession()
	s.SetConnectionState(ConnectionOpen)
	s.Apply(ConnectionEstablished{SessionID: sessionID})
	return s
}
