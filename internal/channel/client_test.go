package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/agent-chat/internal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newAgentServer starts a websocket server that sends frames and then runs after
func newAgentServer(t *testing.T, frames []string, after func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if after != nil {
			after(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type stateRecorder struct {
	mu     sync.Mutex
	states []internal.ConnectionState
}

func (r *stateRecorder) record(s internal.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []internal.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]internal.ConnectionState(nil), r.states...)
}

func collect(t *testing.T, c *Client) []internal.Event {
	t.Helper()
	var out []internal.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestDialDeliversEventsInOrder(t *testing.T) {
	url := newAgentServer(t, []string{
		`{"type":"connection_established","sessionId":"s-1"}`,
		`not json`,
		`{"type":"status","step":"plan","status":"started"}`,
		`{"message":"no type"}`,
		`{"type":"final_insight","insight":"done"}`,
	}, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	rec := &stateRecorder{}
	c, err := Dial(context.Background(), url, WithStateHandler(rec.record))
	require.NoError(t, err)

	events := collect(t, c)
	require.Len(t, events, 3)
	assert.Equal(t, internal.ConnectionEstablished{SessionID: "s-1"}, events[0])
	assert.Equal(t, internal.EventStatus, events[1].Type())
	assert.Equal(t, internal.EventFinalInsight, events[2].Type())

	<-c.Done()
	assert.NoError(t, c.Err())
	assert.Equal(t, internal.ConnectionClosed, c.State())
	assert.Equal(t, []internal.ConnectionState{
		internal.ConnectionConnecting,
		internal.ConnectionOpen,
		internal.ConnectionClosed,
	}, rec.get())
}

func TestDialRequiresURL(t *testing.T) {
	c, err := Dial(context.Background(), "  ")
	assert.Nil(t, c)
	var ce *internal.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ws_url", ce.Key)
}

func TestDialRejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rec := &stateRecorder{}
	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), WithStateHandler(rec.record))
	var te *internal.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, http.StatusNotFound, te.Status)
	assert.Equal(t, []internal.ConnectionState{internal.ConnectionConnecting, internal.ConnectionClosed}, rec.get())
}

func TestAbnormalCloseReportsError(t *testing.T) {
	url := newAgentServer(t, []string{`{"type":"status","step":"a"}`}, func(conn *websocket.Conn) {
		conn.UnderlyingConn().Close()
	})

	c, err := Dial(context.Background(), url)
	require.NoError(t, err)
	collect(t, c)

	var te *internal.TransportError
	require.True(t, errors.As(c.Err(), &te))
	assert.Equal(t, "read", te.Op)
}

func TestCloseByClient(t *testing.T) {
	release := make(chan struct{})
	url := newAgentServer(t, nil, func(conn *websocket.Conn) {
		// hold the connection open until the client hangs up
		_, _, _ = conn.ReadMessage()
		close(release)
	})

	rec := &stateRecorder{}
	c, err := Dial(context.Background(), url, WithStateHandler(rec.record))
	require.NoError(t, err)
	assert.Equal(t, internal.ConnectionOpen, c.State())

	_ = c.Close()
	assert.NoError(t, c.Err())
	assert.Equal(t, internal.ConnectionClosed, c.State())
	assert.Equal(t, []internal.ConnectionState{
		internal.ConnectionConnecting,
		internal.ConnectionOpen,
		internal.ConnectionClosing,
		internal.ConnectionClosed,
	}, rec.get())

	select {
	case <-release:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the close")
	}

	// closing twice is harmless
	assert.NoError(t, c.Close())
}

func TestForward(t *testing.T) {
	url := newAgentServer(t, []string{
		`{"type":"connection_established","sessionId":"abc"}`,
		`{"type":"query_result","objective":"Q1","query":"q","data":[{"a":1}]}`,
	}, func(conn *websocket.Conn) {
		conn.UnderlyingConn().Close()
	})

	session := internal.NewChatSession()
	c, err := Dial(context.Background(), url, WithStateHandler(session.SetConnectionState))
	require.NoError(t, err)

	Forward(context.Background(), c, session)

	snap := session.Snapshot()
	assert.Empty(t, snap.SessionID, "a lost channel clears the session id")
	assert.Equal(t, internal.ConnectionClosed, snap.Connection)
	require.Len(t, snap.Results, 1)
	last, ok := snap.LastEntry()
	require.True(t, ok)
	assert.Equal(t, internal.RoleSystem, last.Role)
}

func TestForwardNormalCloseEndsTurn(t *testing.T) {
	closeNow := make(chan struct{})
	url := newAgentServer(t, []string{`{"type":"connection_established","sessionId":"s-9"}`}, func(conn *websocket.Conn) {
		<-closeNow
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	session := internal.NewChatSession()
	c, err := Dial(context.Background(), url, WithStateHandler(session.SetConnectionState))
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		Forward(context.Background(), c, session)
		close(finished)
	}()

	require.Eventually(t, func() bool { return session.SessionID() == "s-9" }, 5*time.Second, 10*time.Millisecond)
	_, err = session.BeginTurn("how many orders?")
	require.NoError(t, err)
	require.True(t, session.Processing())

	close(closeNow)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Forward did not return after the agent closed the channel")
	}

	assert.NoError(t, c.Err())
	snap := session.Snapshot()
	assert.False(t, snap.Processing)
	assert.Empty(t, snap.Status)
	assert.Empty(t, snap.SessionID)
	assert.Equal(t, internal.ConnectionClosed, snap.Connection)
	last, ok := snap.LastEntry()
	require.True(t, ok)
	assert.Equal(t, internal.RoleSystem, last.Role)
	assert.Contains(t, last.Content, ErrClosedByAgent.Error())
}

// orderSink records applied events, the closed state and channel loss in
// the order they arrive
type orderSink struct {
	mu  sync.Mutex
	log []string
}

func (s *orderSink) add(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, entry)
}

func (s *orderSink) Apply(ev internal.Event) { s.add(string(ev.Type())) }
func (s *orderSink) ChannelLost(error)       { s.add("lost") }

func (s *orderSink) state(state internal.ConnectionState) {
	if state == internal.ConnectionClosed {
		s.add("closed")
	}
}

func TestForwardReportsCloseAfterBufferedEvents(t *testing.T) {
	release := make(chan struct{})
	url := newAgentServer(t, nil, func(conn *websocket.Conn) {
		<-release
		for _, f := range []string{
			`{"type":"connection_established","sessionId":"late"}`,
			`{"type":"status","step":"plan","status":"started"}`,
			`{"type":"final_insight","insight":"done"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	sink := &orderSink{}
	c, err := Dial(context.Background(), url, WithStateHandler(sink.state))
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		Forward(context.Background(), c, sink)
		close(finished)
	}()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.forwarded
	}, 5*time.Second, 5*time.Millisecond)
	close(release)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Forward did not return")
	}
	assert.Equal(t, []string{"connection_established", "status", "final_insight", "closed", "lost"}, sink.log)
}

func TestForwardCancelledStillReportsClose(t *testing.T) {
	url := newAgentServer(t, nil, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	rec := &stateRecorder{}
	c, err := Dial(context.Background(), url, WithStateHandler(rec.record))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Forward(ctx, c, &orderSink{})

	require.NoError(t, c.Close())
	assert.Equal(t, internal.ConnectionClosed, rec.get()[len(rec.get())-1])
}
