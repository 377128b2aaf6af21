package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/channel"
	"github.com/iksnae/agent-chat/internal/config"
)

// connectSession validates c, opens the event channel and starts folding its
// events into a new session. A missing ws_url is logged and the channel is
// never opened.
func connectSession(ctx context.Context, c *config.Config, opts ...channel.Option) (*internal.ChatSession, *channel.Client, error) {
	if err := c.Validate(); err != nil {
		internal.LogError("Invalid configuration: %v", err)
		return nil, nil, err
	}

	session := internal.NewChatSession()
	opts = append([]channel.Option{channel.WithStateHandler(session.SetConnectionState)}, opts...)
	client, err := channel.Dial(ctx, c.WSURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	go channel.Forward(ctx, client, session)
	return session, client, nil
}

// waitForSessionID blocks until the server announces a session id
func waitForSessionID(ctx context.Context, s *internal.ChatSession, client *channel.Client) error {
	for s.SessionID() == "" {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no session announced by %s: %w", client.URL(), ctx.Err())
		case <-client.Done():
			if err := client.Err(); err != nil {
				return err
			}
			return errors.New("event channel closed before a session was announced")
		case <-s.Changed():
		}
	}
	return nil
}

// waitIdle blocks until no turn is outstanding
func waitIdle(ctx context.Context, s *internal.ChatSession) error {
	for s.Processing() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Changed():
		}
	}
	return nil
}
