package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/agent-chat/internal"
)

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestEntry(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name     string
		entry    internal.TranscriptEntry
		contains []string
	}{
		{"user", internal.TranscriptEntry{Role: internal.RoleUser, Content: "hello", CreatedAt: at}, []string{"You", "hello", "09:30:00"}},
		{"assistant empty", internal.TranscriptEntry{Role: internal.RoleAssistant}, []string{"Agent", "(empty message)"}},
		{"system", internal.TranscriptEntry{Role: internal.RoleSystem, Content: "Error: boom"}, []string{"System", "Error: boom"}},
		{
			"milestone with queries and reasoning",
			internal.TranscriptEntry{
				Role:             internal.RoleMilestone,
				Content:          "Generated 1 query",
				GeneratedQueries: []internal.GeneratedQuery{{Objective: "Revenue", Query: "SELECT 1"}},
				Reasoning:        "monthly grain",
			},
			[]string{"Generated 1 query", "Revenue: SELECT 1", "Reasoning: monthly grain"},
		},
		{"context", internal.TranscriptEntry{Role: internal.RoleContextInfo, Content: "Filtered to US"}, []string{"Filtered to US"}},
		{
			"report",
			internal.TranscriptEntry{
				Role:           internal.RoleAssistant,
				Content:        "summary",
				ReportSections: []internal.ReportSection{{Title: "Findings", Content: "costs rose"}},
			},
			[]string{"Findings", "costs rose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Entry(tt.entry, 60)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("the quick brown fox jumps over the lazy dog", 10)
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, len(line), 10, line)
	}
	assert.Equal(t, "short", WrapText("short", 10))
	assert.Equal(t, "a\nb", WrapText("a\nb", 10))
	assert.Equal(t, "averyveryverylongword", WrapText("averyveryverylongword", 5))
}

func TestResult(t *testing.T) {
	r := internal.CreateTestResult("Monthly revenue", "SELECT month, revenue\nFROM sales", "postgres")
	out := Result(r, 1)
	assert.Contains(t, out, "Monthly revenue")
	assert.Contains(t, out, "[postgres]")
	assert.Contains(t, out, "SELECT month, revenue FROM sales")
	assert.Contains(t, out, "month")
	assert.Contains(t, out, "2024-01")
	assert.NotContains(t, out, "2024-02")
	assert.Contains(t, out, "1 more row(s)")

	r.Error = "permission denied"
	out = Result(r, 0)
	assert.Contains(t, out, "Query failed: permission denied")
	assert.NotContains(t, out, "2024-01")

	out = Result(internal.TabularResult{Objective: "Empty"}, 0)
	assert.Contains(t, out, "No rows returned.")
}

func TestTableKeepsColumnOrder(t *testing.T) {
	r := internal.TabularResult{
		Columns: []string{"zeta", "alpha"},
		Rows:    []internal.Record{{"zeta": json.Number("1"), "alpha": "a"}},
	}
	out := Table(r, 0)
	assert.Less(t, strings.Index(out, "zeta"), strings.Index(out, "alpha"))
}

func TestPager(t *testing.T) {
	p := Pager{}
	assert.Empty(t, p.Label())
	p.Next()
	assert.Equal(t, 0, p.Index)

	p.SetTotal(3)
	assert.Equal(t, "1 / 3", p.Label())
	p.Prev()
	assert.Equal(t, "3 / 3", p.Label())
	p.Next()
	p.Next()
	assert.Equal(t, "2 / 3", p.Label())

	p.SetTotal(1)
	assert.Equal(t, 0, p.Index)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got, pages := Page(items, 1, 2)
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, 3, pages)

	got, _ = Page(items, 2, 2)
	assert.Equal(t, []int{5}, got)

	got, _ = Page(items, 3, 2)
	assert.Nil(t, got)

	_, pages = Page([]int{}, 0, 0)
	assert.Equal(t, 0, pages)
}

func TestChartStatuses(t *testing.T) {
	tests := []struct {
		name string
		out  internal.PlotOutcome
		want string
	}{
		{"not needed", internal.PlotOutcome{Status: internal.PlotNotNeeded}, MsgNoGraph},
		{"unrecognized", internal.PlotOutcome{Status: internal.PlotUnrecognized}, MsgUnrecognized},
		{"unavailable", internal.PlotOutcome{Status: internal.PlotUnavailable, Reason: `missing values column "sales"`}, `Chart unavailable: missing values column "sales"`},
		{"no data", internal.PlotOutcome{Status: internal.PlotNoData}, MsgNoData},
		{"result error", internal.PlotOutcome{Status: internal.PlotResultError, Reason: "timeout"}, "Query failed: timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, Chart(tt.out, ChartOptions{}), tt.want)
		})
	}
}

func TestChartPlots(t *testing.T) {
	n := internal.NewNormalizer()
	result := internal.TabularResult{
		Objective: "Sales",
		Rows: []internal.Record{
			{"month": "Jan", "revenue": 10.0, "region": "EU"},
			{"month": "Feb", "revenue": 30.0, "region": "US"},
			{"month": "Mar", "revenue": 20.0, "region": "EU"},
		},
	}

	bar := n.Resolve(internal.PlotChart{Type: internal.ChartBar, Title: "Revenue", Columns: internal.ChartColumns{X: "month", Y: []string{"revenue"}}}, &result)
	out := Chart(bar, ChartOptions{Width: 60})
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "revenue by month")
	assert.Contains(t, out, "Feb")
	assert.Contains(t, out, "█")

	pie := n.Resolve(internal.PlotChart{Type: internal.ChartPie, Columns: internal.ChartColumns{Names: "month", Values: "revenue"}}, &result)
	out = Chart(pie, ChartOptions{Width: 60})
	assert.Contains(t, out, "50.0%")

	line := n.Resolve(internal.PlotChart{Type: internal.ChartLine, Columns: internal.ChartColumns{X: "month", Y: []string{"revenue"}, Color: "region"}}, &result)
	out = Chart(line, ChartOptions{Width: 50, Height: 6})
	assert.Contains(t, out, "30")
	assert.Contains(t, out, "Jan")
	assert.Contains(t, out, "Mar")
	assert.Contains(t, out, "region:")
	assert.Contains(t, out, "EU")

	scatter := n.Resolve(internal.PlotChart{Type: internal.ChartScatter, Columns: internal.ChartColumns{X: "revenue", Y: []string{"revenue"}}}, &result)
	out = Chart(scatter, ChartOptions{Width: 40, Height: 5})
	assert.Contains(t, out, "●")
	assert.NotContains(t, out, "region:")
}

func TestChartNonFiniteValues(t *testing.T) {
	n := internal.NewNormalizer()
	rows := []internal.Record{{"region": "EU", "amount": "Infinity"}, {"region": "US", "amount": 3}}
	suggestion := internal.ChartSuggestion{Type: "pie", Names: "region", Values: "amount"}

	var out string
	require.NotPanics(t, func() {
		out = Chart(n.Prepare(suggestion, []internal.TabularResult{{Rows: rows}}), ChartOptions{Width: 60})
	})
	assert.Contains(t, out, "100.0%")
	assert.NotContains(t, out, "EU")

	// points built by hand bypass the normalizer
	for _, kind := range []internal.ChartKind{internal.ChartBar, internal.ChartPie} {
		data := &internal.PlotData{XLabel: "x", YLabel: "y", Points: []internal.PlotPoint{
			{Label: "a", Y: math.Inf(1)},
			{Label: "b", Y: math.NaN()},
			{Label: "c", Y: 2},
		}}
		require.NotPanics(t, func() {
			Chart(internal.PlotOutcome{Status: internal.PlotReady, Kind: kind, Data: data}, ChartOptions{Width: 60})
		}, string(kind))
	}
}

func TestChartSinglePoint(t *testing.T) {
	out := Chart(internal.PlotOutcome{
		Status: internal.PlotReady,
		Kind:   internal.ChartLine,
		Data:   &internal.PlotData{XLabel: "x", YLabel: "y", Points: []internal.PlotPoint{{Label: "a", Y: 1}}},
	}, ChartOptions{Width: 30, Height: 3})
	assert.Contains(t, out, "•")
}

func TestImageChart(t *testing.T) {
	data := pngBase64(t, 4, 3)

	info, err := DecodeImage("data:image/png;base64," + data)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)

	_, err = DecodeImage("not base64!")
	assert.Error(t, err)
	_, err = DecodeImage(base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.Error(t, err)

	dir := t.TempDir()
	img := internal.ImageChart{Title: "Revenue / Month", ImageData: data}
	out := Chart(internal.PlotOutcome{Status: internal.PlotImage, Image: &img}, ChartOptions{ImageDir: dir})
	assert.Contains(t, out, "PNG, 4x3")
	assert.Contains(t, out, "saved to")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "revenue-month-"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".png"))

	out = Chart(internal.PlotOutcome{Status: internal.PlotImage, Image: &img}, ChartOptions{})
	assert.Contains(t, out, "set image_dir")
}

func TestHeaderAndStatus(t *testing.T) {
	snap := internal.CreateTestSnapshot("s-9")
	h := Header(snap)
	assert.Contains(t, h, "OPEN")
	assert.Contains(t, h, "session s-9")
	assert.Contains(t, h, "1 result(s)")

	assert.Empty(t, Status(snap))
	snap.Processing = true
	assert.Contains(t, Status(snap), "Working...")
	snap.Status = "Planning"
	assert.Contains(t, Status(snap), "Planning")
}
