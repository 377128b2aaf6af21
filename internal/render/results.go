package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/iksnae/agent-chat/internal"
)

const (
	// DefaultMaxRows caps how many rows a result table shows
	DefaultMaxRows = 20
	maxCellWidth   = 40
)

// Result renders one tabular result. A result carrying an error shows the
// error in place of its table.
func Result(r internal.TabularResult, maxRows int) string {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var b strings.Builder
	title := r.Objective
	if title == "" {
		title = "Query result"
	}
	b.WriteString(headerStyle.Render(title))
	if r.Platform != "" {
		b.WriteString(" " + metaStyle.Render("["+r.Platform+"]"))
	}
	if r.Query != "" && r.Query != "N/A" {
		b.WriteString("\n" + queryStyle.Render(truncate(strings.Join(strings.Fields(r.Query), " "), 100)))
	}
	b.WriteString("\n")

	if r.Error != "" {
		b.WriteString(errorStyle.Render("Query failed: " + r.Error))
		return b.String()
	}
	if len(r.Rows) == 0 {
		b.WriteString(noticeStyle.Render("No rows returned."))
		return b.String()
	}

	b.WriteString(Table(r, maxRows))
	if extra := len(r.Rows) - maxRows; extra > 0 {
		b.WriteString("\n" + noticeStyle.Render(fmt.Sprintf("... (%d more row(s))", extra)))
	}
	return b.String()
}

// Table renders the rows of r as a bordered table
func Table(r internal.TabularResult, maxRows int) string {
	cols := internal.ColumnsOf(r)
	rows := r.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = truncate(internal.FormatValue(row[c]), maxCellWidth)
		}
		cells = append(cells, line)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(cols...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	return t.String()
}

// Pager tracks the selected item of a paginated list
type Pager struct {
	Index int
	Total int
}

// SetTotal updates the item count and keeps the index in range
func (p *Pager) SetTotal(total int) {
	p.Total = total
	if p.Index >= total {
		p.Index = total - 1
	}
	if p.Index < 0 {
		p.Index = 0
	}
}

// Next moves to the next item, wrapping around
func (p *Pager) Next() {
	if p.Total == 0 {
		return
	}
	p.Index = (p.Index + 1) % p.Total
}

// Prev moves to the previous item, wrapping around
func (p *Pager) Prev() {
	if p.Total == 0 {
		return
	}
	p.Index = (p.Index - 1 + p.Total) % p.Total
}

// Label renders "2 / 5", or an empty string for an empty list
func (p Pager) Label() string {
	if p.Total == 0 {
		return ""
	}
	return fmt.Sprintf("%d / %d", p.Index+1, p.Total)
}

// Page returns the items on page (0-based) of the given size and the page count
func Page[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = 1
	}
	pages := (len(items) + size - 1) / size
	if page < 0 || page >= pages {
		return nil, pages
	}
	end := (page + 1) * size
	if end > len(items) {
		end = len(items)
	}
	return items[page*size : end], pages
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
