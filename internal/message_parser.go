package internal

import (
	"strings"
)

const (
	ContextStartMarker = "---DISPLAY_CONTEXT START---"
	ContextEndMarker   = "---DISPLAY_CONTEXT END---"
	QueryStartMarker   = "---QUERY START---"
)

// OutboundMessage is user input split into the text sent to the agent and an
// optional display-only context annotation.
type OutboundMessage struct {
	Message string
	Context string
}

// ParseOutboundMessage extracts the context block and query block from input.
// Anything malformed falls back to treating the whole input as the message.
func ParseOutboundMessage(input string) OutboundMessage {
	plain := OutboundMessage{Message: strings.TrimSpace(input)}

	ctxStart := strings.Index(input, ContextStartMarker)
	queryStart := strings.Index(input, QueryStartMarker)
	if ctxStart < 0 || queryStart < 0 || queryStart < ctxStart {
		return plain
	}

	bodyStart := ctxStart + len(ContextStartMarker)
	rel := strings.Index(input[bodyStart:], ContextEndMarker)
	if rel < 0 {
		LogDebug("Context start marker without end marker, sending input as-is")
		return plain
	}
	ctxEnd := bodyStart + rel
	if ctxEnd+len(ContextEndMarker) > queryStart {
		LogDebug("Context end marker after query marker, sending input as-is")
		return plain
	}

	message := strings.TrimSpace(input[queryStart+len(QueryStartMarker):])
	if message == "" {
		return plain
	}
	return OutboundMessage{
		Message: message,
		Context: strings.TrimSpace(input[bodyStart:ctxEnd]),
	}
}

// FormatContextMessage builds input carrying a display context for query
func FormatContextMessage(context, query string) string {
	if strings.TrimSpace(context) == "" {
		return query
	}
	return ContextStartMarker + context + ContextEndMarker + QueryStartMarker + query
}
