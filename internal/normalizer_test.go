package internal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSuggestion(t *testing.T, raw string) ChartSuggestion {
	t.Helper()
	var s ChartSuggestion
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestNormalizeNestedAndFlatColumnsMatch(t *testing.T) {
	n := NewNormalizer()

	nested := decodeSuggestion(t, `{"objective":"Revenue","type":"bar","title":"Revenue","columns":{"x":"date","y":"revenue"}}`)
	flat := decodeSuggestion(t, `{"objective":"Revenue","type":"bar","title":"Revenue","x_axis":"date","y_axis":"revenue"}`)

	a, err := n.Normalize(nested)
	require.NoError(t, err)
	b, err := n.Normalize(flat)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	plot, ok := a.(PlotChart)
	require.True(t, ok)
	assert.Equal(t, ChartColumns{X: "date", Y: []string{"revenue"}}, plot.Columns)
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name    string
		raw     string
		want    ChartSpec
		wantErr error
	}{
		{
			name: "image pass-through",
			raw:  `{"type":"image","title":"Trend","description":"d","image_data":"aGVsbG8=","originalSuggestion":{"dataSourceObjective":"Q1"}}`,
			want: ImageChart{
				Title:       "Trend",
				Description: "d",
				ImageData:   "aGVsbG8=",
				Original:    &ChartSuggestion{DataSourceObjective: "Q1"},
			},
		},
		{
			name: "camelCase image data",
			raw:  `{"type":"IMAGE","imageData":"abc"}`,
			want: ImageChart{ImageData: "abc"},
		},
		{
			name: "chart_type wins over type",
			raw:  `{"type":"graph","chart_type":"line","columns":{"x":"d","y":["a","b"]}}`,
			want: PlotChart{Type: ChartLine, Columns: ChartColumns{X: "d", Y: []string{"a", "b"}}},
		},
		{
			name: "none",
			raw:  `{"type":"none","title":"Nothing to plot","columns":{"x":"a"}}`,
			want: NoneChart{Title: "Nothing to plot"},
		},
		{
			name:    "plot resolving to image",
			raw:     `{"type":"bar","chart_type":"image"}`,
			wantErr: ErrInconsistentChart,
		},
		{
			name: "pie roles from flat fields",
			raw:  `{"type":"pie","names":"region","values":"sales"}`,
			want: PlotChart{Type: ChartPie, Columns: ChartColumns{Names: "region", Values: "sales"}},
		},
		{
			name: "nested roles win over flat",
			raw:  `{"type":"scatter","columns":{"x":"a","y":"b"},"x_axis":"z","color_column":"seg"}`,
			want: PlotChart{Type: ChartScatter, Columns: ChartColumns{X: "a", Y: []string{"b"}, Color: "seg"}},
		},
		{
			name: "missing type stays unrecognized",
			raw:  `{"columns":{"x":"a","y":"b"}}`,
			want: PlotChart{Columns: ChartColumns{X: "a", Y: []string{"b"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(decodeSuggestion(t, tt.raw))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				var ce *ChartError
				assert.True(t, errors.As(err, &ce))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractColumns(t *testing.T) {
	n := NewNormalizer()

	s := decodeSuggestion(t, `{"type":"bar","x_axis":"month","y_axis":["revenue","cost"],"color_column":"region"}`)
	got := n.ExtractColumns(s)
	require.NotNil(t, got.Columns)
	assert.Equal(t, "month", got.Columns.X)
	assert.Equal(t, ColumnList{"revenue", "cost"}, got.Columns.Y)
	assert.Equal(t, "region", got.Columns.Color)
	assert.Nil(t, s.Columns, "input must not be modified")

	empty := n.ExtractColumns(ChartSuggestion{Type: "none"})
	assert.Nil(t, empty.Columns)
}

func TestMatchResult(t *testing.T) {
	n := NewNormalizer()
	results := []TabularResult{
		CreateTestResult("Monthly revenue by region", "SELECT 1", ""),
		CreateTestResult("Customer churn", "SELECT 2", ""),
	}

	tests := []struct {
		name string
		s    ChartSuggestion
		want string
		ok   bool
	}{
		{"objective substring", ChartSuggestion{Objective: "churn", Type: "bar"}, "Customer churn", true},
		{"data source objective", ChartSuggestion{DataSourceObjective: "Customer", Type: "bar"}, "Customer churn", true},
		{"objective without match falls back to first", ChartSuggestion{Objective: "unknown", Type: "bar"}, "Monthly revenue by region", true},
		{
			"image uses original suggestion",
			ChartSuggestion{Type: "image", Objective: "Monthly", OriginalSuggestion: &ChartSuggestion{DataSourceObjective: "churn"}},
			"Customer churn", true,
		},
		{"image without reference uses title", ChartSuggestion{Type: "image", Title: "Customer churn over time"}, "Customer churn", true},
		{"title contained in objective", ChartSuggestion{Type: "line", Title: "churn"}, "Customer churn", true},
		{"no reference and no title", ChartSuggestion{Type: "line"}, "Monthly revenue by region", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.MatchResult(tt.s, results)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.Objective)
		})
	}

	_, ok := n.MatchResult(ChartSuggestion{Objective: "x"}, nil)
	assert.False(t, ok)
}

func TestResolvePieWithoutValuesColumn(t *testing.T) {
	n := NewNormalizer()
	result := TabularResult{
		Objective: "Share",
		Rows:      []Record{{"region": "EU"}, {"region": "US", "sales": 3}},
	}
	spec := PlotChart{Type: ChartPie, Columns: ChartColumns{Names: "region", Values: "sales"}}

	var out PlotOutcome
	require.NotPanics(t, func() { out = n.Resolve(spec, &result) })
	assert.Equal(t, PlotUnavailable, out.Status)
	assert.Nil(t, out.Data)
	assert.Contains(t, out.Reason, "values")
}

func TestResolveSkipsNonFiniteCells(t *testing.T) {
	n := NewNormalizer()
	spec := PlotChart{Type: ChartPie, Columns: ChartColumns{Names: "region", Values: "amount"}}

	result := TabularResult{Rows: []Record{
		{"region": "EU", "amount": "Infinity"},
		{"region": "US", "amount": json.Number("3")},
		{"region": "APAC", "amount": "NaN"},
	}}
	out := n.Resolve(spec, &result)
	require.Equal(t, PlotReady, out.Status)
	require.Len(t, out.Data.Points, 1)
	assert.Equal(t, "US", out.Data.Points[0].Label)

	result.Rows = []Record{{"region": "EU", "amount": "-Inf"}}
	out = n.Resolve(spec, &result)
	assert.Equal(t, PlotUnavailable, out.Status)
}

func TestResolve(t *testing.T) {
	n := NewNormalizer()
	sales := TabularResult{
		Objective: "Sales",
		Columns:   []string{"month", "revenue", "region"},
		Rows: []Record{
			{"month": "Jan", "revenue": json.Number("10"), "region": "EU"},
			{"month": "Feb", "revenue": "n/a", "region": "US"},
			{"month": "Mar", "revenue": 30.0, "region": "US"},
		},
	}

	tests := []struct {
		name   string
		spec   ChartSpec
		result *TabularResult
		want   PlotStatus
	}{
		{"bar ready", PlotChart{Type: ChartBar, Columns: ChartColumns{X: "month", Y: []string{"revenue"}}}, &sales, PlotReady},
		{"line missing y", PlotChart{Type: ChartLine, Columns: ChartColumns{X: "month"}}, &sales, PlotUnavailable},
		{"scatter y not in row", PlotChart{Type: ChartScatter, Columns: ChartColumns{X: "month", Y: []string{"cost"}}}, &sales, PlotUnavailable},
		{"unknown type", PlotChart{Type: "heatmap"}, &sales, PlotUnrecognized},
		{"empty type", PlotChart{}, &sales, PlotUnrecognized},
		{"none", NoneChart{Title: "n"}, nil, PlotNotNeeded},
		{"image", ImageChart{ImageData: "abc"}, nil, PlotImage},
		{"image without data", ImageChart{}, nil, PlotUnavailable},
		{"no result", PlotChart{Type: ChartBar}, nil, PlotNoData},
		{"result error", PlotChart{Type: ChartBar}, &TabularResult{Error: "timeout"}, PlotResultError},
		{"empty rows", PlotChart{Type: ChartBar}, &TabularResult{}, PlotNoData},
		{"nil spec", nil, &sales, PlotUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Resolve(tt.spec, tt.result)
			assert.Equal(t, tt.want, got.Status, got.Reason)
		})
	}
}

func TestResolveExtractsPoints(t *testing.T) {
	n := NewNormalizer()
	result := TabularResult{
		Rows: []Record{
			{"day": json.Number("1"), "count": json.Number("4"), "seg": "a"},
			{"day": json.Number("2"), "count": "x", "seg": "b"},
			{"day": json.Number("3"), "count": 6, "seg": "b"},
		},
	}

	out := n.Resolve(PlotChart{Type: ChartScatter, Columns: ChartColumns{X: "day", Y: []string{"count"}, Color: "seg"}}, &result)
	require.Equal(t, PlotReady, out.Status)
	require.NotNil(t, out.Data)
	assert.Equal(t, "seg", out.Data.ColorBy)
	require.Len(t, out.Data.Points, 2)
	assert.Equal(t, PlotPoint{Label: "1", X: 1, XNumeric: true, Y: 4, Group: "a"}, out.Data.Points[0])
	assert.Equal(t, 6.0, out.Data.Points[1].Y)

	// color column absent from the first row keeps the default palette
	result.Rows[0] = Record{"day": json.Number("1"), "count": json.Number("4")}
	out = n.Resolve(PlotChart{Type: ChartBar, Columns: ChartColumns{X: "day", Y: []string{"count"}, Color: "seg"}}, &result)
	require.Equal(t, PlotReady, out.Status)
	assert.Empty(t, out.Data.ColorBy)
	assert.Empty(t, out.Data.Points[0].Group)
}

func TestPrepare(t *testing.T) {
	n := NewNormalizer()
	results := []TabularResult{CreateTestResult("Monthly revenue", "SELECT", "")}

	out := n.Prepare(decodeSuggestion(t, `{"objective":"Monthly revenue","type":"bar","x_axis":"month","y_axis":"revenue"}`), results)
	assert.Equal(t, PlotReady, out.Status)

	out = n.Prepare(decodeSuggestion(t, `{"type":"line","chart_type":"image"}`), results)
	assert.Equal(t, PlotUnavailable, out.Status)

	out = n.Prepare(decodeSuggestion(t, `{"type":"pie","names":"month","values":"revenue"}`), nil)
	assert.Equal(t, PlotNoData, out.Status)
}

func TestPlotStatusString(t *testing.T) {
	assert.Equal(t, "ready", PlotReady.String())
	assert.Equal(t, "unavailable", PlotUnavailable.String())
	assert.Equal(t, "PlotStatus(42)", PlotStatus(42).String())
}
