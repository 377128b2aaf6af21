package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType is the discriminant carried in every server event
type EventType string

const (
	EventConnectionEstablished EventType = "connection_established"
	EventStatus                EventType = "status"
	EventClassifierInfo        EventType = "classifier_info"
	EventClassifierAnswer      EventType = "classifier_answer"
	EventReasoningSummary      EventType = "reasoning_summary"
	EventFinalInsight          EventType = "final_insight"
	EventFinalRecommendation   EventType = "final_recommendation"
	EventQueryResult           EventType = "query_result"
	EventRoutingDecision       EventType = "routing_decision"
	EventError                 EventType = "error"
)

// Event is one decoded server event
type Event interface {
	Type() EventType
}

// ConnectionEstablished announces the session id for this connection
type ConnectionEstablished struct {
	SessionID string
}

// StatusUpdate reports progress of one workflow step
type StatusUpdate struct {
	Step             string
	Status           string
	Details          string
	GeneratedQueries []GeneratedQuery
}

// ClassifierInfo is an intermediate planning note from the request classifier
type ClassifierInfo struct {
	Message string
}

// ClassifierAnswer is a direct answer that ends the turn without analysis
type ClassifierAnswer struct {
	Message string
}

// ReasoningSummary attaches reasoning to a completed workflow step
type ReasoningSummary struct {
	Step    string
	Summary string
}

// ExecutedQuery is one entry of a bulk executed_queries list
type ExecutedQuery struct {
	Platform  string
	Objective string
	Query     string
	Rows      []Record
	Columns   []string
	Error     string
}

// FinalInsight ends a turn with an insight
type FinalInsight struct {
	Insight         string
	Reasoning       string
	ExecutedQueries []ExecutedQuery
	// HasExecutedQueries distinguishes an absent list from an empty one
	HasExecutedQueries bool
	Suggestions        []ChartSuggestion
}

// FinalRecommendation ends a turn with a sectioned report
type FinalRecommendation struct {
	Summary            string
	Reasoning          string
	ReportSections     []ReportSection
	ExecutedQueries    []ExecutedQuery
	HasExecutedQueries bool
	Suggestions        []ChartSuggestion
}

// QueryResultEvent carries one executed query's output
type QueryResultEvent struct {
	Result TabularResult
}

// RoutingDecision records how the agent routed the request
type RoutingDecision struct {
	Decision string
}

// ErrorEvent reports a backend failure for the current turn
type ErrorEvent struct {
	Step    string
	Message string
	Details string
}

// UnknownEvent is any event whose type is not recognised
type UnknownEvent struct {
	Name string
}

func (ConnectionEstablished) Type() EventType { return EventConnectionEstablished }
func (StatusUpdate) Type() EventType          { return EventStatus }
func (ClassifierInfo) Type() EventType        { return EventClassifierInfo }
func (ClassifierAnswer) Type() EventType      { return EventClassifierAnswer }
func (ReasoningSummary) Type() EventType      { return EventReasoningSummary }
func (FinalInsight) Type() EventType          { return EventFinalInsight }
func (FinalRecommendation) Type() EventType   { return EventFinalRecommendation }
func (QueryResultEvent) Type() EventType      { return EventQueryResult }
func (RoutingDecision) Type() EventType       { return EventRoutingDecision }
func (ErrorEvent) Type() EventType            { return EventError }
func (e UnknownEvent) Type() EventType        { return EventType(e.Name) }

// DecodeEvent validates a raw server message and converts it to a typed event.
// Missing optional fields never fail decoding; only non-object input or a
// missing type tag does.
func DecodeEvent(data []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ProtocolError{EventType: "unknown", Err: err}
	}
	kind := strings.TrimSpace(p.str("type"))
	if kind == "" {
		return nil, &ProtocolError{EventType: "unknown", Field: "type", Err: errors.New("missing event type")}
	}

	switch EventType(kind) {
	case EventConnectionEstablished:
		return ConnectionEstablished{SessionID: p.str("sessionId", "session_id", "userId", "user_id")}, nil
	case EventStatus:
		return decodeStatus(p), nil
	case EventClassifierInfo:
		return ClassifierInfo{Message: p.str("message", "content", "text", "info")}, nil
	case EventClassifierAnswer:
		return ClassifierAnswer{Message: p.str("message", "content", "text", "answer")}, nil
	case EventReasoningSummary:
		return ReasoningSummary{Step: p.str("step"), Summary: p.str("summary", "reasoning", "content")}, nil
	case EventFinalInsight:
		ev := FinalInsight{
			Insight:     p.str("insight", "content", "message"),
			Reasoning:   p.str("reasoning"),
			Suggestions: decodeSuggestions(p.list("graph_suggestions")),
		}
		ev.ExecutedQueries, ev.HasExecutedQueries = decodeExecutedQueries(p)
		return ev, nil
	case EventFinalRecommendation:
		ev := FinalRecommendation{
			Summary:        p.str("summary", "recommendation", "content"),
			Reasoning:      p.str("reasoning"),
			ReportSections: decodeSections(p),
			Suggestions:    decodeSuggestions(p.list("graph_suggestions")),
		}
		ev.ExecutedQueries, ev.HasExecutedQueries = decodeExecutedQueries(p)
		return ev, nil
	case EventQueryResult:
		return QueryResultEvent{Result: decodeQueryResult(p)}, nil
	case EventRoutingDecision:
		return RoutingDecision{Decision: firstNonEmpty(p.str("decision", "route"), p.text("decision"))}, nil
	case EventError:
		return ErrorEvent{
			Step:    p.str("step"),
			Message: firstNonEmpty(p.str("message", "error"), "Unknown error"),
			Details: p.text("details"),
		}, nil
	default:
		return UnknownEvent{Name: kind}, nil
	}
}

func decodeStatus(p payload) StatusUpdate {
	ev := StatusUpdate{
		Step:    p.str("step"),
		Status:  p.str("status"),
		Details: p.text("details"),
	}
	ev.GeneratedQueries = decodeGeneratedQueries(p.list("generated_queries"))
	if len(ev.GeneratedQueries) == 0 {
		ev.GeneratedQueries = decodeGeneratedQueries(p.list("queries"))
	}
	if len(ev.GeneratedQueries) == 0 {
		if details := p.object("details"); details != nil {
			ev.GeneratedQueries = decodeGeneratedQueries(details.list("generated_queries"))
			if len(ev.GeneratedQueries) == 0 {
				ev.GeneratedQueries = decodeGeneratedQueries(details.list("queries"))
			}
		}
	}
	return ev
}

func decodeGeneratedQueries(items []json.RawMessage) []GeneratedQuery {
	var out []GeneratedQuery
	for _, item := range items {
		var q payload
		if err := json.Unmarshal(item, &q); err != nil {
			continue
		}
		query := q.str("query", "sql")
		if query == "" {
			continue
		}
		out = append(out, GeneratedQuery{Objective: q.str("objective"), Query: query})
	}
	return out
}

func decodeSections(p payload) []ReportSection {
	items := p.list("report_sections")
	if items == nil {
		items = p.list("sections")
	}
	var out []ReportSection
	for _, item := range items {
		var s payload
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, ReportSection{Title: s.str("title"), Content: s.text("content")})
	}
	return out
}

func decodeSuggestions(items []json.RawMessage) []ChartSuggestion {
	out := make([]ChartSuggestion, 0, len(items))
	for i, item := range items {
		var s ChartSuggestion
		if err := json.Unmarshal(item, &s); err != nil {
			LogWarn("Skipping malformed graph suggestion %d: %v", i+1, err)
			continue
		}
		out = append(out, s)
	}
	return out
}

func decodeExecutedQueries(p payload) ([]ExecutedQuery, bool) {
	if !p.has("executed_queries") {
		return nil, false
	}
	items := p.list("executed_queries")
	out := make([]ExecutedQuery, 0, len(items))
	for i, item := range items {
		var q payload
		if err := json.Unmarshal(item, &q); err != nil {
			LogWarn("Skipping malformed executed query %d: %v", i+1, err)
			continue
		}
		eq := ExecutedQuery{
			Platform:  q.str("platform"),
			Objective: q.str("objective"),
			Query:     q.str("query"),
			Error:     q.str("error"),
		}
		if raw, ok := q["data"]; ok {
			rows, cols, err := decodeRows(raw)
			if err != nil {
				LogWarn("Executed query %d has unreadable data: %v", i+1, err)
			}
			eq.Rows, eq.Columns = rows, cols
		}
		out = append(out, eq)
	}
	return out, true
}

func decodeQueryResult(p payload) TabularResult {
	r := TabularResult{
		Objective: p.str("objective"),
		Query:     firstNonEmpty(p.str("query"), "N/A"),
		Error:     p.str("error"),
		Platform:  p.str("platform"),
	}
	if raw, ok := p["data"]; ok {
		rows, cols, err := decodeRows(raw)
		if err != nil {
			LogWarn("query_result for %q has unreadable data: %v", r.Objective, err)
			if r.Error == "" {
				r.Error = fmt.Sprintf("unreadable result data: %v", err)
			}
		}
		r.Rows, r.Columns = rows, cols
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
