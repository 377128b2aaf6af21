package render

import (
	"fmt"
	"strings"

	"github.com/iksnae/agent-chat/internal"
)

const defaultWidth = 80

// Entry renders one transcript entry
func Entry(e internal.TranscriptEntry, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	textWidth := width - 4
	if textWidth < 20 {
		textWidth = 20
	}

	var b strings.Builder
	switch e.Role {
	case internal.RoleUser:
		b.WriteString(userStyle.Render("👤 You"))
	case internal.RoleAssistant:
		b.WriteString(assistantStyle.Render("🤖 Agent"))
	case internal.RoleSystem:
		b.WriteString(systemStyle.Render("⚠ System"))
	case internal.RoleMilestone:
		b.WriteString(milestoneStyle.Render("✔ " + e.Content))
	case internal.RoleContextInfo:
		b.WriteString(contextStyle.Render("📌 " + WrapText(e.Content, textWidth)))
		return b.String()
	default:
		b.WriteString(metaStyle.Render(string(e.Role)))
	}
	if !e.CreatedAt.IsZero() && e.Role != internal.RoleMilestone {
		b.WriteString(" " + metaStyle.Render(e.CreatedAt.Format("15:04:05")))
	}

	if e.Role != internal.RoleMilestone {
		content := strings.TrimSpace(e.Content)
		if content == "" {
			content = "(empty message)"
		}
		b.WriteString("\n" + contentStyle.Render(WrapText(content, textWidth)))
	}

	for _, q := range e.GeneratedQueries {
		line := q.Query
		if q.Objective != "" {
			line = fmt.Sprintf("%s: %s", q.Objective, q.Query)
		}
		b.WriteString("\n" + queryStyle.Render("• "+WrapText(line, textWidth-4)))
	}

	for _, s := range e.ReportSections {
		b.WriteString("\n\n" + sectionTitleStyle.Render(s.Title))
		if body := strings.TrimSpace(s.Content); body != "" {
			b.WriteString("\n" + contentStyle.Render(WrapText(body, textWidth)))
		}
	}

	if r := strings.TrimSpace(e.Reasoning); r != "" {
		b.WriteString("\n" + reasoningStyle.Render(WrapText("Reasoning: "+r, textWidth)))
	}
	return b.String()
}

// Transcript renders every entry separated by blank lines
func Transcript(entries []internal.TranscriptEntry, width int) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, Entry(e, width))
	}
	return strings.Join(parts, "\n\n")
}

// Status renders the live status line, or nothing when idle
func Status(snap internal.Snapshot) string {
	if !snap.Processing && snap.Status == "" {
		return ""
	}
	status := snap.Status
	if status == "" {
		status = "Working..."
	}
	return noticeStyle.Render(status)
}

// Header renders the connection line shown above the transcript
func Header(snap internal.Snapshot) string {
	parts := []string{snap.Connection.String()}
	if snap.SessionID != "" {
		parts = append(parts, "session "+snap.SessionID)
	}
	if n := len(snap.Results); n > 0 {
		parts = append(parts, fmt.Sprintf("%d result(s)", n))
	}
	if n := len(snap.Suggestions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d chart(s)", n))
	}
	return headerStyle.Render("💬 agent-chat") + " " + metaStyle.Render(strings.Join(parts, " • "))
}

// WrapText wraps text at word boundaries to the given width
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len([]rune(line)) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			if len([]rune(currentLine))+len([]rune(word))+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
				}
				currentLine = word
			} else if currentLine == "" {
				currentLine = word
			} else {
				currentLine += " " + word
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}
