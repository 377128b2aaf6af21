package render

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/iksnae/agent-chat/internal"
)

const (
	defaultChartHeight = 12
	maxLabelWidth      = 16
)

// Status lines for charts that cannot be drawn
const (
	MsgNoGraph      = "No graph needed for this analysis."
	MsgUnrecognized = "Unrecognized chart format."
	MsgUnavailable  = "Chart unavailable"
	MsgNoData       = "No data available for this chart."
)

// ChartOptions sizes chart output. ImageDir, when set, is where image
// charts are written.
type ChartOptions struct {
	Width    int
	Height   int
	ImageDir string
}

// Chart renders a resolved chart outcome
func Chart(out internal.PlotOutcome, opts ChartOptions) string {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultChartHeight
	}

	var b strings.Builder
	if out.Title != "" {
		b.WriteString(headerStyle.Render(out.Title) + "\n")
	}

	switch out.Status {
	case internal.PlotNotNeeded:
		b.WriteString(noticeStyle.Render(MsgNoGraph))
	case internal.PlotUnrecognized:
		b.WriteString(noticeStyle.Render(MsgUnrecognized))
	case internal.PlotUnavailable:
		msg := MsgUnavailable
		if out.Reason != "" {
			msg += ": " + out.Reason
		}
		b.WriteString(noticeStyle.Render(msg))
	case internal.PlotNoData:
		b.WriteString(noticeStyle.Render(MsgNoData))
	case internal.PlotResultError:
		b.WriteString(errorStyle.Render("Query failed: " + out.Reason))
	case internal.PlotImage:
		b.WriteString(imageChart(out.Image, opts.ImageDir))
	case internal.PlotReady:
		switch out.Kind {
		case internal.ChartBar:
			b.WriteString(barChart(out.Data, opts.Width, false))
		case internal.ChartPie:
			b.WriteString(barChart(out.Data, opts.Width, true))
		case internal.ChartLine, internal.ChartScatter:
			b.WriteString(gridChart(out.Data, out.Kind == internal.ChartLine, opts.Width, opts.Height))
		default:
			b.WriteString(noticeStyle.Render(MsgUnrecognized))
		}
	default:
		b.WriteString(noticeStyle.Render(MsgUnrecognized))
	}
	return b.String()
}

func imageChart(img *internal.ImageChart, dir string) string {
	if img == nil {
		return noticeStyle.Render(MsgUnavailable)
	}
	info, err := DecodeImage(img.ImageData)
	if err != nil {
		internal.LogWarn("Image chart %q could not be decoded: %v", img.Title, err)
		return noticeStyle.Render(MsgUnavailable + ": " + err.Error())
	}

	line := fmt.Sprintf("🖼  Image chart (%s, %dx%d)", strings.ToUpper(info.Format), info.Width, info.Height)
	var b strings.Builder
	if dir != "" {
		path, err := SaveImage(*img, dir)
		if err != nil {
			internal.LogWarn("Failed to save image chart: %v", err)
			line += " " + errorStyle.Render("not saved: "+err.Error())
		} else {
			line += " saved to " + path
		}
	} else {
		line += " " + metaStyle.Render("(set image_dir to save it)")
	}
	b.WriteString(line)
	if img.Description != "" {
		b.WriteString("\n" + reasoningStyle.Render(img.Description))
	}
	return b.String()
}

// groupPalette assigns colors to group values in order of first appearance
func groupPalette(d *internal.PlotData) (map[string]lipgloss.Color, []string) {
	colors := make(map[string]lipgloss.Color)
	var order []string
	if d.ColorBy == "" {
		return colors, nil
	}
	for _, p := range d.Points {
		if _, ok := colors[p.Group]; !ok {
			colors[p.Group] = groupColors[len(order)%len(groupColors)]
			order = append(order, p.Group)
		}
	}
	return colors, order
}

func pointStyle(d *internal.PlotData, colors map[string]lipgloss.Color, p internal.PlotPoint) lipgloss.Style {
	if d.ColorBy != "" {
		return lipgloss.NewStyle().Foreground(colors[p.Group])
	}
	return lipgloss.NewStyle().Foreground(seriesColor)
}

func legend(d *internal.PlotData, colors map[string]lipgloss.Color, order []string) string {
	if d.ColorBy == "" || len(order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(order))
	for _, g := range order {
		parts = append(parts, lipgloss.NewStyle().Foreground(colors[g]).Render("●")+" "+g)
	}
	return "\n" + metaStyle.Render(d.ColorBy+": ") + strings.Join(parts, "  ")
}

func barChart(d *internal.PlotData, width int, share bool) string {
	labelWidth := 0
	for _, p := range d.Points {
		if n := len([]rune(p.Label)); n > labelWidth {
			labelWidth = n
		}
	}
	if labelWidth > maxLabelWidth {
		labelWidth = maxLabelWidth
	}

	var total, maxAbs float64
	for _, p := range d.Points {
		if share && p.Y > 0 {
			total += p.Y
		}
		maxAbs = math.Max(maxAbs, math.Abs(p.Y))
	}

	barWidth := width - labelWidth - 14
	if barWidth < 10 {
		barWidth = 10
	}

	colors, order := groupPalette(d)
	var b strings.Builder
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s by %s", d.YLabel, d.XLabel)))
	for _, p := range d.Points {
		var frac float64
		var value string
		if share {
			if total > 0 && p.Y > 0 {
				frac = p.Y / total
			}
			value = fmt.Sprintf("%5.1f%%", frac*100)
		} else {
			if maxAbs > 0 {
				frac = math.Abs(p.Y) / maxAbs
			}
			value = formatNumber(p.Y)
		}
		n := int(math.Round(frac * float64(barWidth)))
		if n < 0 || math.IsNaN(frac) {
			n = 0
		} else if n > barWidth {
			n = barWidth
		}
		glyph := "█"
		if p.Y < 0 {
			glyph = "░"
		}
		bar := pointStyle(d, colors, p).Render(strings.Repeat(glyph, n))
		label := padRight(truncate(p.Label, labelWidth), labelWidth)
		b.WriteString(fmt.Sprintf("\n%s │%s %s", label, bar, value))
	}
	b.WriteString(legend(d, colors, order))
	return b.String()
}

func gridChart(d *internal.PlotData, connect bool, width, height int) string {
	points := append([]internal.PlotPoint(nil), d.Points...)
	numericX := true
	for _, p := range points {
		if !p.XNumeric {
			numericX = false
			break
		}
	}
	xs := make([]float64, len(points))
	for i, p := range points {
		if numericX {
			xs[i] = p.X
		} else {
			xs[i] = float64(i)
		}
	}
	if connect && numericX {
		idx := make([]int, len(points))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
		sortedPts := make([]internal.PlotPoint, len(points))
		sortedXs := make([]float64, len(points))
		for i, j := range idx {
			sortedPts[i], sortedXs[i] = points[j], xs[j]
		}
		points, xs = sortedPts, sortedXs
	}

	minX, maxX := bounds(xs)
	ys := make([]float64, len(points))
	for i, p := range points {
		ys[i] = p.Y
	}
	minY, maxY := bounds(ys)

	axisWidth := len(formatNumber(maxY))
	if n := len(formatNumber(minY)); n > axisWidth {
		axisWidth = n
	}
	plotWidth := width - axisWidth - 3
	if plotWidth < 10 {
		plotWidth = 10
	}

	type cell struct {
		glyph string
		style lipgloss.Style
		set   bool
	}
	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, plotWidth)
	}
	col := func(x float64) int { return scale(x, minX, maxX, plotWidth) }
	row := func(y float64) int { return height - 1 - scale(y, minY, maxY, height) }

	colors, order := groupPalette(d)
	glyph := "●"
	if connect {
		glyph = "•"
	}

	if connect {
		for i := 1; i < len(points); i++ {
			c0, c1 := col(xs[i-1]), col(xs[i])
			r0, r1 := row(ys[i-1]), row(ys[i])
			style := pointStyle(d, colors, points[i])
			for c := c0 + 1; c < c1; c++ {
				t := float64(c-c0) / float64(c1-c0)
				r := int(math.Round(float64(r0) + t*float64(r1-r0)))
				if !grid[r][c].set {
					grid[r][c] = cell{glyph: "·", style: style, set: true}
				}
			}
		}
	}
	for i, p := range points {
		grid[row(ys[i])][col(xs[i])] = cell{glyph: glyph, style: pointStyle(d, colors, p), set: true}
	}

	var b strings.Builder
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s vs %s", d.YLabel, d.XLabel)))
	for r := range grid {
		label := ""
		switch r {
		case 0:
			label = formatNumber(maxY)
		case height - 1:
			label = formatNumber(minY)
		}
		b.WriteString("\n" + padLeft(label, axisWidth) + " │")
		for _, c := range grid[r] {
			if c.set {
				b.WriteString(c.style.Render(c.glyph))
			} else {
				b.WriteString(" ")
			}
		}
	}
	b.WriteString("\n" + strings.Repeat(" ", axisWidth) + " └" + strings.Repeat("─", plotWidth))

	if len(points) > 0 {
		first, last := points[0].Label, points[len(points)-1].Label
		if numericX {
			first, last = formatNumber(minX), formatNumber(maxX)
		}
		gap := plotWidth - len([]rune(first)) - len([]rune(last))
		if gap < 1 {
			gap = 1
		}
		b.WriteString("\n" + strings.Repeat(" ", axisWidth+2) + first + strings.Repeat(" ", gap) + last)
	}
	b.WriteString(legend(d, colors, order))
	return b.String()
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// scale maps v from [lo, hi] onto 0..n-1
func scale(v, lo, hi float64, n int) int {
	if n <= 1 || hi == lo {
		return 0
	}
	i := int(math.Round((v - lo) / (hi - lo) * float64(n-1)))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func padRight(s string, n int) string {
	if d := n - len([]rune(s)); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func padLeft(s string, n int) string {
	if d := n - len([]rune(s)); d > 0 {
		return strings.Repeat(" ", d) + s
	}
	return s
}
