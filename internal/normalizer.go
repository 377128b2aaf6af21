package internal

import (
	"fmt"
	"strings"
)

// ChartKind is the normalized chart type
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartPie     ChartKind = "pie"
	ChartNone    ChartKind = "none"
	ChartImage   ChartKind = "image"
)

// ChartColumns binds column roles of a plot chart. Roles the backend did not
// send stay empty.
type ChartColumns struct {
	X      string   `json:"x,omitempty" yaml:"x,omitempty"`
	Y      []string `json:"y,omitempty" yaml:"y,omitempty"`
	Names  string   `json:"names,omitempty" yaml:"names,omitempty"`
	Values string   `json:"values,omitempty" yaml:"values,omitempty"`
	Color  string   `json:"color,omitempty" yaml:"color,omitempty"`
}

// ChartSpec is one of ImageChart, PlotChart or NoneChart
type ChartSpec interface {
	Kind() ChartKind
	Heading() string
}

// ImageChart is a pre-rendered chart carried as encoded image data
type ImageChart struct {
	Title       string           `json:"title,omitempty" yaml:"title,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	ImageData   string           `json:"imageData" yaml:"-"`
	Original    *ChartSuggestion `json:"originalSuggestion,omitempty" yaml:"original_suggestion,omitempty"`
}

// PlotChart is a declarative chart over the columns of a tabular result
type PlotChart struct {
	Type        ChartKind    `json:"type" yaml:"type"`
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     ChartColumns `json:"columns" yaml:"columns"`
}

// NoneChart records that the agent decided no chart is useful
type NoneChart struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

func (ImageChart) Kind() ChartKind  { return ChartImage }
func (c PlotChart) Kind() ChartKind { return c.Type }
func (NoneChart) Kind() ChartKind   { return ChartNone }

func (c ImageChart) Heading() string { return c.Title }
func (c PlotChart) Heading() string  { return c.Title }
func (c NoneChart) Heading() string  { return c.Title }

// PlotStatus is the outcome of preparing a chart for display
type PlotStatus int

const (
	PlotReady PlotStatus = iota
	PlotImage
	PlotNotNeeded
	PlotUnrecognized
	PlotUnavailable
	PlotNoData
	PlotResultError
)

func (s PlotStatus) String() string {
	switch s {
	case PlotReady:
		return "ready"
	case PlotImage:
		return "image"
	case PlotNotNeeded:
		return "not_needed"
	case PlotUnrecognized:
		return "unrecognized"
	case PlotUnavailable:
		return "unavailable"
	case PlotNoData:
		return "no_data"
	case PlotResultError:
		return "result_error"
	default:
		return fmt.Sprintf("PlotStatus(%d)", int(s))
	}
}

// PlotPoint is one plotted row
type PlotPoint struct {
	Label    string
	X        float64
	XNumeric bool
	Y        float64
	Group    string
}

// PlotData is the extracted series for a ready plot
type PlotData struct {
	XLabel string
	YLabel string
	// ColorBy is set when a color column drives per-point coloring
	ColorBy string
	Points  []PlotPoint
}

// PlotOutcome describes what a chart view should show
type PlotOutcome struct {
	Status PlotStatus
	Kind   ChartKind
	Title  string
	Reason string
	Image  *ImageChart
	Data   *PlotData
}

// Normalizer turns backend chart suggestions into chart specs and binds them
// to tabular results
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// ExtractColumns returns a copy of s whose nested Columns also carries the
// flat role fields. Nested values win when both shapes are present.
func (n *Normalizer) ExtractColumns(s ChartSuggestion) ChartSuggestion {
	cols := n.columnsOf(s)
	if cols.X == "" && len(cols.Y) == 0 && cols.Names == "" && cols.Values == "" && cols.Color == "" {
		s.Columns = nil
		return s
	}
	s.Columns = &SuggestionColumns{
		X:      cols.X,
		Y:      ColumnList(cols.Y),
		Names:  cols.Names,
		Values: cols.Values,
		Color:  cols.Color,
	}
	return s
}

func (n *Normalizer) columnsOf(s ChartSuggestion) ChartColumns {
	var out ChartColumns
	if !s.Columns.empty() {
		out = ChartColumns{
			X:      s.Columns.X,
			Names:  s.Columns.Names,
			Values: s.Columns.Values,
			Color:  s.Columns.Color,
		}
		if len(s.Columns.Y) > 0 {
			out.Y = append([]string(nil), s.Columns.Y...)
		}
	}
	if out.X == "" {
		out.X = s.XAxis
	}
	if len(out.Y) == 0 && len(s.YAxis) > 0 {
		out.Y = append([]string(nil), s.YAxis...)
	}
	if out.Names == "" {
		out.Names = s.Names
	}
	if out.Values == "" {
		out.Values = s.Values
	}
	if out.Color == "" {
		out.Color = s.ColorColumn
	}
	return out
}

// Normalize converts a raw suggestion into exactly one chart spec. A plot
// suggestion whose chart_type resolves to "image" returns a ChartError
// wrapping ErrInconsistentChart.
func (n *Normalizer) Normalize(s ChartSuggestion) (ChartSpec, error) {
	if s.IsImage() {
		return ImageChart{
			Title:       s.Title,
			Description: s.Description,
			ImageData:   s.ImageData,
			Original:    s.OriginalSuggestion,
		}, nil
	}

	kind := ChartKind(strings.ToLower(strings.TrimSpace(firstNonEmpty(s.ChartType, s.Type))))
	switch kind {
	case ChartImage:
		err := &ChartError{Objective: s.Objective, Type: string(kind), Err: ErrInconsistentChart}
		LogWarn("%v", err)
		return nil, err
	case ChartNone:
		return NoneChart{Title: s.Title}, nil
	}

	return PlotChart{
		Type:        kind,
		Title:       s.Title,
		Description: s.Description,
		Columns:     n.columnsOf(s),
	}, nil
}

// MatchResult finds the tabular result a suggestion draws from. It tries an
// explicit objective reference first, then a title match, then falls back to
// the first result. ok is false only when results is empty.
func (n *Normalizer) MatchResult(s ChartSuggestion, results []TabularResult) (TabularResult, bool) {
	if len(results) == 0 {
		return TabularResult{}, false
	}

	var ref string
	if s.IsImage() {
		if s.OriginalSuggestion != nil {
			ref = strings.TrimSpace(s.OriginalSuggestion.DataSourceObjective)
		}
	} else {
		ref = strings.TrimSpace(firstNonEmpty(s.Objective, s.DataSourceObjective))
	}

	if ref != "" {
		for _, r := range results {
			if strings.Contains(r.Objective, ref) {
				return r, true
			}
		}
		LogDebug("No result objective contains %q, using the first result", ref)
		return results[0], true
	}

	if title := strings.TrimSpace(s.Title); title != "" {
		for _, r := range results {
			if r.Objective == "" {
				continue
			}
			if strings.Contains(title, r.Objective) || strings.Contains(r.Objective, title) {
				return r, true
			}
		}
	}
	return results[0], true
}

// Resolve checks a chart spec against its matched result and extracts the
// series to draw. It never fails; problems are reported through Status.
func (n *Normalizer) Resolve(spec ChartSpec, result *TabularResult) PlotOutcome {
	switch c := spec.(type) {
	case NoneChart:
		return PlotOutcome{Status: PlotNotNeeded, Kind: ChartNone, Title: c.Title}
	case ImageChart:
		if strings.TrimSpace(c.ImageData) == "" {
			return PlotOutcome{Status: PlotUnavailable, Kind: ChartImage, Title: c.Title, Reason: "image data is empty"}
		}
		img := c
		return PlotOutcome{Status: PlotImage, Kind: ChartImage, Title: c.Title, Image: &img}
	case PlotChart:
		return n.resolvePlot(c, result)
	default:
		return PlotOutcome{Status: PlotUnrecognized, Reason: "no chart spec"}
	}
}

func (n *Normalizer) resolvePlot(c PlotChart, result *TabularResult) PlotOutcome {
	out := PlotOutcome{Kind: c.Type, Title: c.Title}

	switch c.Type {
	case ChartBar, ChartLine, ChartScatter, ChartPie:
	default:
		out.Status = PlotUnrecognized
		out.Reason = fmt.Sprintf("chart type %q", c.Type)
		return out
	}

	if result == nil {
		out.Status = PlotNoData
		out.Reason = "no matching result"
		return out
	}
	if result.Error != "" {
		out.Status = PlotResultError
		out.Reason = result.Error
		return out
	}
	if len(result.Rows) == 0 {
		out.Status = PlotNoData
		out.Reason = "result has no rows"
		return out
	}

	first := result.Rows[0]
	var labelCol, valueCol string
	if c.Type == ChartPie {
		labelCol, valueCol = c.Columns.Names, c.Columns.Values
		if missing := missingColumns(first, map[string]string{"names": labelCol, "values": valueCol}); missing != "" {
			out.Status = PlotUnavailable
			out.Reason = missing
			return out
		}
	} else {
		labelCol = c.Columns.X
		if len(c.Columns.Y) > 0 {
			valueCol = c.Columns.Y[0]
		}
		if missing := missingColumns(first, map[string]string{"x": labelCol, "y": valueCol}); missing != "" {
			out.Status = PlotUnavailable
			out.Reason = missing
			return out
		}
	}

	data := &PlotData{XLabel: labelCol, YLabel: valueCol}
	if c.Type != ChartPie && c.Columns.Color != "" {
		if v, ok := first[c.Columns.Color]; ok && FormatValue(v) != "" {
			data.ColorBy = c.Columns.Color
		}
	}

	for i, row := range result.Rows {
		y, ok := ToFloat(row[valueCol])
		if !ok {
			LogDebug("Row %d of %q has no numeric %q, skipping", i+1, result.Objective, valueCol)
			continue
		}
		p := PlotPoint{Label: FormatValue(row[labelCol]), Y: y}
		p.X, p.XNumeric = ToFloat(row[labelCol])
		if data.ColorBy != "" {
			p.Group = FormatValue(row[data.ColorBy])
		}
		data.Points = append(data.Points, p)
	}
	if len(data.Points) == 0 {
		out.Status = PlotUnavailable
		out.Reason = fmt.Sprintf("column %q has no numeric values", valueCol)
		return out
	}

	out.Status = PlotReady
	out.Data = data
	return out
}

// missingColumns names the first required role whose column is unset or
// absent from row
func missingColumns(row Record, roles map[string]string) string {
	for _, role := range []string{"x", "y", "names", "values"} {
		col, required := roles[role]
		if !required {
			continue
		}
		if col == "" {
			return fmt.Sprintf("no %s column", role)
		}
		if _, ok := row[col]; !ok {
			return fmt.Sprintf("missing %s column %q", role, col)
		}
	}
	return ""
}

// Prepare normalizes a suggestion, matches it to a result and resolves it
func (n *Normalizer) Prepare(s ChartSuggestion, results []TabularResult) PlotOutcome {
	spec, err := n.Normalize(s)
	if err != nil {
		return PlotOutcome{Status: PlotUnavailable, Title: s.Title, Reason: err.Error()}
	}
	var matched *TabularResult
	if r, ok := n.MatchResult(s, results); ok {
		matched = &r
	}
	return n.Resolve(spec, matched)
}
