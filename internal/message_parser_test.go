package internal

import (
	"testing"
)

func TestParseOutboundMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  OutboundMessage
	}{
		{
			name:  "plain text",
			input: "  show me revenue  ",
			want:  OutboundMessage{Message: "show me revenue"},
		},
		{
			name:  "context and query",
			input: "---DISPLAY_CONTEXT START---Filtered to US---DISPLAY_CONTEXT END------QUERY START---show me US revenue",
			want:  OutboundMessage{Message: "show me US revenue", Context: "Filtered to US"},
		},
		{
			name:  "empty context",
			input: "---DISPLAY_CONTEXT START--- ---DISPLAY_CONTEXT END------QUERY START---why?",
			want:  OutboundMessage{Message: "why?"},
		},
		{
			name:  "missing end marker",
			input: "---DISPLAY_CONTEXT START---ctx---QUERY START---q",
			want:  OutboundMessage{Message: "---DISPLAY_CONTEXT START---ctx---QUERY START---q"},
		},
		{
			name:  "query marker before context",
			input: "---QUERY START---q---DISPLAY_CONTEXT START---ctx---DISPLAY_CONTEXT END---",
			want:  OutboundMessage{Message: "---QUERY START---q---DISPLAY_CONTEXT START---ctx---DISPLAY_CONTEXT END---"},
		},
		{
			name:  "end marker after query marker",
			input: "---DISPLAY_CONTEXT START---ctx---QUERY START---q---DISPLAY_CONTEXT END---",
			want:  OutboundMessage{Message: "---DISPLAY_CONTEXT START---ctx---QUERY START---q---DISPLAY_CONTEXT END---"},
		},
		{
			name:  "empty query",
			input: "---DISPLAY_CONTEXT START---ctx---DISPLAY_CONTEXT END------QUERY START---   ",
			want:  OutboundMessage{Message: "---DISPLAY_CONTEXT START---ctx---DISPLAY_CONTEXT END------QUERY START---"},
		},
		{
			name:  "query marker only",
			input: "---QUERY START---hello",
			want:  OutboundMessage{Message: "---QUERY START---hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOutboundMessage(tt.input)
			if got != tt.want {
				t.Errorf("ParseOutboundMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatContextMessage(t *testing.T) {
	msg := FormatContextMessage("Result: Monthly revenue", "why did February dip?")
	got := ParseOutboundMessage(msg)
	if got.Context != "Result: Monthly revenue" || got.Message != "why did February dip?" {
		t.Errorf("round trip = %+v", got)
	}

	if got := FormatContextMessage("  ", "plain"); got != "plain" {
		t.Errorf("FormatContextMessage() with blank context = %q, want plain", got)
	}
}
