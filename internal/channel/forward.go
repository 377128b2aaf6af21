package channel

import (
	"context"

	"github.com/iksnae/agent-chat/internal"
)

// Sink receives the events of one connection, in order
type Sink interface {
	Apply(ev internal.Event)
	ChannelLost(err error)
}

// Forward applies every event of c to sink until the connection ends or ctx
// is cancelled. Events already received are applied before the closed state
// reaches the state handler. A connection that ends with an error, or that
// the agent closes, is then reported through ChannelLost; a local Close is not.
func Forward(ctx context.Context, c *Client, sink Sink) {
	c.attach()
	for {
		select {
		case <-ctx.Done():
			c.detach()
			return
		case ev, ok := <-c.Events():
			if !ok {
				c.reportClosed()
				switch err := c.Err(); {
				case err != nil:
					sink.ChannelLost(err)
				case !c.closedLocally():
					sink.ChannelLost(ErrClosedByAgent)
				}
				return
			}
			sink.Apply(ev)
		}
	}
}
