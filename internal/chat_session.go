package internal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	statusSending  = "Sending message..."
	statusWorking  = "Agent is working..."
	statusPlanning = "Planning the analysis..."
)

// Submitter posts one user turn to the chat endpoint
type Submitter interface {
	Submit(ctx context.Context, req ChatRequest) (*ChatAck, error)
}

// ChatSession owns the transcript, results, suggestions and processing flag of
// one connected client. Apply and the turn methods are its only mutators; the
// mutex serializes them because de-duplication is check-then-act.
//
// Overlapping turns are not rejected: a new BeginTurn while a turn is still
// outstanding resets results, suggestions and status, and late events of the
// earlier turn fold into the new state.
type ChatSession struct {
	mu sync.Mutex

	sessionID   string
	connection  ConnectionState
	transcript  []TranscriptEntry
	results     []TabularResult
	suggestions []ChartSuggestion
	processing  bool
	status      string

	dedup      *Deduplicator
	normalizer *Normalizer
	newID      func() string
	now        func() time.Time
	changed    chan struct{}
}

// Option configures a ChatSession
type Option func(*ChatSession)

// WithIDGenerator overrides how transcript entry ids are generated
func WithIDGenerator(fn func() string) Option {
	return func(s *ChatSession) { s.newID = fn }
}

// WithClock overrides the time source used for entry timestamps
func WithClock(fn func() time.Time) Option {
	return func(s *ChatSession) { s.now = fn }
}

// NewChatSession creates an idle session with no connection
func NewChatSession(opts ...Option) *ChatSession {
	s := &ChatSession{
		connection: ConnectionUninstantiated,
		dedup:      NewDeduplicator(),
		normalizer: NewNormalizer(),
		newID:      uuid.NewString,
		now:        time.Now,
		changed:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changed signals after every mutation. Signals coalesce; read Snapshot for the state.
func (s *ChatSession) Changed() <-chan struct{} {
	return s.changed
}

func (s *ChatSession) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state
func (s *ChatSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:   s.sessionID,
		Connection:  s.connection,
		Transcript:  slices.Clone(s.transcript),
		Results:     slices.Clone(s.results),
		Suggestions: slices.Clone(s.suggestions),
		Processing:  s.processing,
		Status:      s.status,
	}
}

// Processing reports whether a turn is outstanding
func (s *ChatSession) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// SessionID returns the id announced by the server, or "" before it arrives
func (s *ChatSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// SetConnectionState records a channel state change. Closing and closed
// states drop the session id.
func (s *ChatSession) SetConnectionState(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connection == state {
		return
	}
	LogDebug("Connection state %s -> %s", s.connection, state)
	s.connection = state
	if state == ConnectionClosing || state == ConnectionClosed {
		s.sessionID = ""
	}
	s.notify()
}

// ChannelLost records a channel failure: the session id is dropped and any
// outstanding turn ends with a system entry.
func (s *ChatSession) ChannelLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = ConnectionClosed
	s.sessionID = ""
	msg := "Connection to the agent was lost."
	if err != nil {
		msg = fmt.Sprintf("Connection to the agent was lost: %v", err)
	}
	LogWarn("%s", msg)
	s.appendEntry(TranscriptEntry{Role: RoleSystem, Content: msg})
	s.endTurn()
	s.notify()
}

// BeginTurn validates and records a user message, resets the per-turn lists
// and marks the session as processing. The returned request is what must be
// submitted to the chat endpoint.
func (s *ChatSession) BeginTurn(text string) (ChatRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	var guardErr error
	switch {
	case s.connection != ConnectionOpen:
		guardErr = ErrNotConnected
	case s.sessionID == "":
		guardErr = ErrNoSession
	case strings.TrimSpace(text) == "":
		guardErr = ErrEmptyMessage
	}
	if guardErr != nil {
		LogWarn("Rejected outbound message: %v", guardErr)
		s.appendEntry(TranscriptEntry{Role: RoleSystem, Content: fmt.Sprintf("Cannot send message: %v.", guardErr)})
		if guardErr != ErrEmptyMessage {
			// Without a usable connection no outstanding turn can finish
			s.endTurn()
		}
		return ChatRequest{}, guardErr
	}

	parsed := ParseOutboundMessage(text)
	if parsed.Context != "" {
		s.appendEntry(TranscriptEntry{Role: RoleContextInfo, Content: parsed.Context})
	}
	s.appendEntry(TranscriptEntry{Role: RoleUser, Content: parsed.Message})

	if s.processing {
		LogDebug("New turn started while the previous one is still outstanding")
	}
	s.results = []TabularResult{}
	s.suggestions = []ChartSuggestion{}
	s.status = statusSending
	s.processing = true

	return ChatRequest{Message: parsed.Message, SessionID: s.sessionID}, nil
}

// CompleteTurn applies the chat endpoint's acknowledgement (or failure) for a
// request produced by BeginTurn.
func (s *ChatSession) CompleteTurn(ack *ChatAck, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notify()

	if err != nil {
		LogError("Chat submission failed: %v", err)
		s.appendEntry(TranscriptEntry{Role: RoleSystem, Content: submitErrorText(err)})
		s.endTurn()
		return
	}
	if ack == nil {
		ack = &ChatAck{}
	}
	if strings.TrimSpace(ack.Response) != "" {
		s.appendEntry(TranscriptEntry{Role: RoleAssistant, Content: ack.Response})
	}
	if ack.ToolCalled {
		s.processing = true
		s.status = statusWorking
		return
	}
	s.endTurn()
}

// SendMessage runs a whole outbound turn: record, submit, acknowledge
func (s *ChatSession) SendMessage(ctx context.Context, sub Submitter, text string) error {
	req, err := s.BeginTurn(text)
	if err != nil {
		return err
	}
	ack, err := sub.Submit(ctx, req)
	s.CompleteTurn(ack, err)
	return err
}

func submitErrorText(err error) string {
	var te *TransportError
	if errors.As(err, &te) && te.Err != nil {
		return fmt.Sprintf("Error: %v", te.Err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// appendEntry stamps and appends an entry; callers hold the lock
func (s *ChatSession) appendEntry(e TranscriptEntry) {
	e.ID = s.newID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.transcript = append(s.transcript, e)
}

// endTurn returns to idle; callers hold the lock
func (s *ChatSession) endTurn() {
	s.status = ""
	s.processing = false
}
