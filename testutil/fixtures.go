package testutil

import (
	"encoding/json"
)

// Frame is one raw server event as sent over the channel
type Frame []byte

func frame(v map[string]interface{}) Frame {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// ConnectionFrame announces the session id
func ConnectionFrame(sessionID string) Frame {
	return frame(map[string]interface{}{
		"type":      "connection_established",
		"sessionId": sessionID,
	})
}

// StatusFrame reports progress of a workflow step
func StatusFrame(step, status string) Frame {
	return frame(map[string]interface{}{
		"type":   "status",
		"step":   step,
		"status": status,
	})
}

// QueryResultFrame carries one executed query with tabular rows
func QueryResultFrame(objective, query string, rows []map[string]interface{}) Frame {
	return frame(map[string]interface{}{
		"type":      "query_result",
		"objective": objective,
		"query":     query,
		"platform":  "postgres",
		"data":      rows,
	})
}

// InsightFrame ends a turn with an insight and optional chart suggestions
func InsightFrame(insight string, suggestions ...map[string]interface{}) Frame {
	if suggestions == nil {
		suggestions = []map[string]interface{}{}
	}
	return frame(map[string]interface{}{
		"type":              "final_insight",
		"insight":           insight,
		"graph_suggestions": suggestions,
	})
}

// ErrorFrame reports a backend failure
func ErrorFrame(step, message string) Frame {
	return frame(map[string]interface{}{
		"type":    "error",
		"step":    step,
		"message": message,
	})
}

// RevenueRows returns two months of sample revenue
func RevenueRows() []map[string]interface{} {
	return []map[string]interface{}{
		{"month": "2024-01", "revenue": 120.5},
		{"month": "2024-02", "revenue": 98},
	}
}

// BarSuggestion proposes a bar chart over month and revenue
func BarSuggestion(objective string) map[string]interface{} {
	return map[string]interface{}{
		"objective":  objective,
		"chart_type": "bar",
		"title":      "Revenue by month",
		"columns":    map[string]interface{}{"x": "month", "y": []string{"revenue"}},
	}
}

// InsightScript answers every message with a query result and an insight
func InsightScript(objective string) Script {
	return func(msg string) (Ack, []Frame) {
		return Ack{ToolCalled: true}, []Frame{
			StatusFrame("execute_queries", "running"),
			QueryResultFrame(objective, "SELECT month, revenue FROM sales", RevenueRows()),
			InsightFrame("Revenue dipped in February.", BarSuggestion(objective)),
		}
	}
}
