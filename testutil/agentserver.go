package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Ack is the chat endpoint's reply
type Ack struct {
	Response   string `json:"response,omitempty"`
	ToolCalled bool   `json:"toolCalled,omitempty"`
}

// ChatPost is one recorded POST to the chat endpoint
type ChatPost struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Script decides the reply to a chat message and the frames pushed afterwards
type Script func(message string) (Ack, []Frame)

// AgentServer is a fake agent backend: /ws upgrades to the event channel and
// greets with a connection_established frame, /chat records posts and pushes
// the scripted frames to every open connection.
type AgentServer struct {
	*httptest.Server

	SessionID string
	// FrameDelay is how long after answering a post the frames are pushed
	FrameDelay time.Duration

	script   Script
	upgrader websocket.Upgrader

	mu    sync.Mutex
	posts []ChatPost
	conns []*websocket.Conn
}

// NewAgentServer starts a fake backend that is closed with the test
func NewAgentServer(t *testing.T, sessionID string, script Script) *AgentServer {
	t.Helper()
	s := &AgentServer{
		SessionID:  sessionID,
		FrameDelay: 20 * time.Millisecond,
		script:     script,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/chat", s.serveChat)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// WSURL is the event channel address
func (s *AgentServer) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// ChatURL is the chat endpoint address
func (s *AgentServer) ChatURL() string {
	return s.URL + "/chat"
}

// Posts returns the chat posts received so far
func (s *AgentServer) Posts() []ChatPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatPost(nil), s.posts...)
}

// Push writes frames to every open connection
func (s *AgentServer) Push(frames ...Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		for _, f := range frames {
			_ = c.WriteMessage(websocket.TextMessage, f)
		}
	}
}

// Close drops open connections and shuts the server down
func (s *AgentServer) Close() {
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.Server.Close()
}

func (s *AgentServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	_ = conn.WriteMessage(websocket.TextMessage, ConnectionFrame(s.SessionID))
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *AgentServer) serveChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var post ChatPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid body"})
		return
	}
	s.mu.Lock()
	s.posts = append(s.posts, post)
	s.mu.Unlock()

	var ack Ack
	var frames []Frame
	if s.script != nil {
		ack, frames = s.script(post.Message)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ack)

	if len(frames) > 0 {
		go func() {
			time.Sleep(s.FrameDelay)
			s.Push(frames...)
		}()
	}
}
