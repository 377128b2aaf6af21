package internal

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who (or what) produced a transcript entry
type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleSystem      Role = "system"
	RoleMilestone   Role = "milestone"
	RoleContextInfo Role = "context_info"
)

// ConnectionState mirrors the lifecycle of the event channel
type ConnectionState int

const (
	ConnectionUninstantiated ConnectionState = iota
	ConnectionConnecting
	ConnectionOpen
	ConnectionClosing
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnecting:
		return "CONNECTING"
	case ConnectionOpen:
		return "OPEN"
	case ConnectionClosing:
		return "CLOSING"
	case ConnectionClosed:
		return "CLOSED"
	default:
		return "UNINSTANTIATED"
	}
}

// ReportSection is one titled block of a recommendation report
type ReportSection struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// GeneratedQuery is a query the agent planned for an objective
type GeneratedQuery struct {
	Objective string `json:"objective" yaml:"objective"`
	Query     string `json:"query" yaml:"query"`
}

// TranscriptEntry represents one line of the chat transcript
type TranscriptEntry struct {
	ID               string           `json:"id" yaml:"id"`
	Role             Role             `json:"role" yaml:"role"`
	Content          string           `json:"content" yaml:"content"`
	Reasoning        string           `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	ReportSections   []ReportSection  `json:"report_sections,omitempty" yaml:"report_sections,omitempty"`
	GeneratedQueries []GeneratedQuery `json:"generated_queries,omitempty" yaml:"generated_queries,omitempty"`
	Step             string           `json:"step,omitempty" yaml:"step,omitempty"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
}

// Record is one row of a tabular result keyed by column name
type Record map[string]any

// TabularResult is the output of one executed query
type TabularResult struct {
	Objective string   `json:"objective" yaml:"objective"`
	Query     string   `json:"query" yaml:"query"`
	Columns   []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows      []Record `json:"rows" yaml:"rows"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Platform  string   `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// ColumnList holds one or more column names. The backend sends either a
// single string or an array of strings.
type ColumnList []string

// UnmarshalJSON accepts a string, an array of strings, or null
func (c *ColumnList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*c = nil
		} else {
			*c = ColumnList{single}
		}
		return nil
	}

	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		// Unknown shapes are dropped rather than failing the whole suggestion
		*c = nil
		return nil
	}
	out := make(ColumnList, 0, len(many))
	for _, v := range many {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	*c = out
	return nil
}

// First returns the first column or an empty string
func (c ColumnList) First() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// SuggestionColumns is the nested column-role shape of a chart suggestion
type SuggestionColumns struct {
	X      string     `json:"x,omitempty" yaml:"x,omitempty"`
	Y      ColumnList `json:"y,omitempty" yaml:"y,omitempty"`
	Names  string     `json:"names,omitempty" yaml:"names,omitempty"`
	Values string     `json:"values,omitempty" yaml:"values,omitempty"`
	Color  string     `json:"color,omitempty" yaml:"color,omitempty"`
}

func (c *SuggestionColumns) empty() bool {
	return c == nil || (c.X == "" && len(c.Y) == 0 && c.Names == "" && c.Values == "" && c.Color == "")
}

// ChartSuggestion is a chart proposed by the agent, as received on the wire.
// Column roles arrive either nested under Columns or flattened.
type ChartSuggestion struct {
	Objective           string             `json:"objective,omitempty" yaml:"objective,omitempty"`
	DataSourceObjective string             `json:"dataSourceObjective,omitempty" yaml:"data_source_objective,omitempty"`
	Type                string             `json:"type,omitempty" yaml:"type,omitempty"`
	ChartType           string             `json:"chart_type,omitempty" yaml:"chart_type,omitempty"`
	Title               string             `json:"title,omitempty" yaml:"title,omitempty"`
	Description         string             `json:"description,omitempty" yaml:"description,omitempty"`
	Columns             *SuggestionColumns `json:"columns,omitempty" yaml:"columns,omitempty"`
	XAxis               string             `json:"x_axis,omitempty" yaml:"x_axis,omitempty"`
	YAxis               ColumnList         `json:"y_axis,omitempty" yaml:"y_axis,omitempty"`
	Names               string             `json:"names,omitempty" yaml:"names,omitempty"`
	Values              string             `json:"values,omitempty" yaml:"values,omitempty"`
	ColorColumn         string             `json:"color_column,omitempty" yaml:"color_column,omitempty"`
	ImageData           string             `json:"image_data,omitempty" yaml:"-"`
	OriginalSuggestion  *ChartSuggestion   `json:"originalSuggestion,omitempty" yaml:"original_suggestion,omitempty"`
}

// UnmarshalJSON accepts the camelCase and snake_case spellings the backend uses
func (s *ChartSuggestion) UnmarshalJSON(data []byte) error {
	type plain ChartSuggestion
	aux := struct {
		*plain
		ImageDataCamel      string           `json:"imageData"`
		DataSourceSnake     string           `json:"data_source_objective"`
		OriginalSnake       *ChartSuggestion `json:"original_suggestion"`
		ChartTypeCamel      string           `json:"chartType"`
		ColorColumnFallback string           `json:"color"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.ImageData == "" {
		s.ImageData = aux.ImageDataCamel
	}
	if s.DataSourceObjective == "" {
		s.DataSourceObjective = aux.DataSourceSnake
	}
	if s.OriginalSuggestion == nil {
		s.OriginalSuggestion = aux.OriginalSnake
	}
	if s.ChartType == "" {
		s.ChartType = aux.ChartTypeCamel
	}
	if s.ColorColumn == "" {
		s.ColorColumn = aux.ColorColumnFallback
	}
	return nil
}

// IsImage reports whether the suggestion carries encoded image data
func (s ChartSuggestion) IsImage() bool {
	return strings.EqualFold(strings.TrimSpace(s.Type), string(ChartImage))
}

// ChatRequest is the body posted to the chat endpoint
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ChatAck is the acknowledgement returned by the chat endpoint
type ChatAck struct {
	Response   string `json:"response,omitempty"`
	ToolCalled bool   `json:"toolCalled,omitempty"`
}
