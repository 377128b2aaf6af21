package internal

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WorkflowEndMarker is the suffix of the step name the backend sends when its workflow finishes
const WorkflowEndMarker = "__end__"

var (
	generateQueriesStep = regexp.MustCompile(`(?i)generate.*queries`)
	executeQueriesStep  = regexp.MustCompile(`(?i)execute.*queries`)
	classificationStep  = regexp.MustCompile(`(?i)classification`)
)

// Apply folds one server event into the session state. Events are applied
// strictly in the order they are passed in.
func (s *ChatSession) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	switch e := ev.(type) {
	case ConnectionEstablished:
		if e.SessionID == "" {
			LogWarn("%v", &ProtocolError{EventType: string(e.Type()), Field: "sessionId", Err: fmt.Errorf("missing session id")})
			return
		}
		LogInfo("Session established: %s", e.SessionID)
		s.sessionID = e.SessionID

	case StatusUpdate:
		s.applyStatus(e)

	case ClassifierInfo:
		if strings.TrimSpace(e.Message) == "" {
			return
		}
		s.appendEntry(TranscriptEntry{Role: RoleAssistant, Content: e.Message})
		s.status = statusPlanning

	case ClassifierAnswer:
		if strings.TrimSpace(e.Message) != "" {
			s.appendEntry(TranscriptEntry{Role: RoleAssistant, Content: e.Message})
		} else {
			LogDebug("classifier_answer without text, ending turn")
		}
		s.endTurn()

	case ReasoningSummary:
		for i := len(s.transcript) - 1; i >= 0; i-- {
			entry := &s.transcript[i]
			if entry.Role == RoleMilestone && entry.Step == e.Step {
				entry.Reasoning = e.Summary
				return
			}
		}
		LogDebug("reasoning_summary for step %q has no milestone", e.Step)

	case FinalInsight:
		content := e.Insight
		if strings.TrimSpace(content) == "" {
			content = "Analysis complete."
		}
		s.appendEntry(TranscriptEntry{Role: RoleAssistant, Content: content, Reasoning: e.Reasoning})
		if e.HasExecutedQueries {
			s.results = s.bulkResults(e.ExecutedQueries)
		}
		s.suggestions = append([]ChartSuggestion{}, e.Suggestions...)
		s.endTurn()

	case FinalRecommendation:
		s.appendEntry(TranscriptEntry{
			Role:           RoleAssistant,
			Content:        recommendationText(e),
			Reasoning:      e.Reasoning,
			ReportSections: e.ReportSections,
		})
		suggestions := make([]ChartSuggestion, 0, len(e.Suggestions))
		for _, sg := range e.Suggestions {
			suggestions = append(suggestions, s.normalizer.ExtractColumns(sg))
		}
		s.suggestions = suggestions
		if e.HasExecutedQueries {
			s.results = s.bulkResults(e.ExecutedQueries)
		} else {
			s.results = []TabularResult{}
		}
		s.endTurn()

	case QueryResultEvent:
		var added bool
		s.results, added = s.dedup.Append(s.results, e.Result)
		if !added {
			LogDebug("Ignoring duplicate query_result for %q", e.Result.Objective)
		}

	case RoutingDecision:
		LogInfo("Routing decision: %s", e.Decision)

	case ErrorEvent:
		s.appendEntry(TranscriptEntry{Role: RoleSystem, Content: errorText(e)})
		s.endTurn()

	case nil:
		LogWarn("Ignoring nil event")

	default:
		LogWarn("Ignoring unknown event type %q", ev.Type())
	}
}

func (s *ChatSession) applyStatus(e StatusUpdate) {
	if strings.HasSuffix(e.Step, WorkflowEndMarker) {
		s.endTurn()
		return
	}
	s.status = FormatStatus(e.Step, e.Status, e.Details)

	if e.Status != "completed" {
		return
	}
	switch {
	case generateQueriesStep.MatchString(e.Step):
		content := "Generated queries"
		if n := len(e.GeneratedQueries); n > 0 {
			content = fmt.Sprintf("Generated %s", plural(n, "query", "queries"))
		}
		s.appendEntry(TranscriptEntry{
			Role:             RoleMilestone,
			Content:          content,
			Step:             e.Step,
			GeneratedQueries: e.GeneratedQueries,
		})
	case executeQueriesStep.MatchString(e.Step):
		s.appendEntry(TranscriptEntry{Role: RoleMilestone, Content: "Executed queries", Step: e.Step})
	case classificationStep.MatchString(e.Step):
		s.appendEntry(TranscriptEntry{Role: RoleMilestone, Content: "Classified the request", Step: e.Step})
	}
}

// bulkResults builds the replacement result list from executed_queries
func (s *ChatSession) bulkResults(queries []ExecutedQuery) []TabularResult {
	results := make([]TabularResult, 0, len(queries))
	for i, q := range queries {
		if len(q.Rows) == 0 {
			LogWarn("Skipping executed query %d without data", i+1)
			continue
		}
		r := TabularResult{
			Objective: q.Objective,
			Query:     q.Query,
			Columns:   q.Columns,
			Rows:      q.Rows,
			Error:     q.Error,
			Platform:  q.Platform,
		}
		if strings.TrimSpace(r.Objective) == "" {
			r.Objective = fmt.Sprintf("Executed Query %d", i+1)
		}
		if strings.TrimSpace(r.Query) == "" {
			r.Query = "N/A"
		}
		results = append(results, r)
	}
	return s.dedup.Deduplicate(results)
}

// FormatStatus renders a status event as one human-readable line
func FormatStatus(step, status, details string) string {
	line := HumanizeStep(step)
	if status != "" {
		if line == "" {
			line = cases.Title(language.English).String(status)
		} else {
			line = fmt.Sprintf("%s: %s", line, status)
		}
	}
	if strings.TrimSpace(details) != "" {
		line = fmt.Sprintf("%s (%s)", line, details)
	}
	return line
}

// HumanizeStep turns a workflow step name like "generate_queries" into "Generate Queries"
func HumanizeStep(step string) string {
	step = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(step))
	return cases.Title(language.English).String(strings.Join(strings.Fields(step), " "))
}

func recommendationText(e FinalRecommendation) string {
	count := fmt.Sprintf("Prepared a recommendation report with %s.", plural(len(e.ReportSections), "section", "sections"))
	if strings.TrimSpace(e.Summary) != "" {
		return e.Summary + "\n\n" + count
	}
	return count
}

func errorText(e ErrorEvent) string {
	var b strings.Builder
	b.WriteString("Error")
	if e.Step != "" {
		fmt.Fprintf(&b, " in %s", HumanizeStep(e.Step))
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if strings.TrimSpace(e.Details) != "" {
		fmt.Fprintf(&b, "\nDetails: %s", e.Details)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
