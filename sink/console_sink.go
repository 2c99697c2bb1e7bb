package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/gookit/color"
)

// ConsoleSink prints the conversation the way a chat window would, naming the
// participants Stranger_1..N in order of appearance.
type ConsoleSink struct {
	mu           sync.Mutex
	out          io.Writer
	colours      bool
	participants int
	names        map[event.ParticipantID]string
}

var _ contract.Listener = (*ConsoleSink)(nil)

func NewConsoleSink(out io.Writer, participants int, colours bool) *ConsoleSink {
	return &ConsoleSink{
		out:          out,
		colours:      colours,
		participants: participants,
		names:        make(map[event.ParticipantID]string),
	}
}

func (c *ConsoleSink) Notify(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.render(ev)
	if line == "" {
		return nil
	}
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrListenerGone, err)
	}
	return nil
}

func (c *ConsoleSink) render(ev event.Event) string {
	if ev.Participant == "" {
		return ""
	}
	name := c.name(ev.Participant)
	switch ev.Kind {
	case event.IDSet:
		return c.paint(color.FgGray, fmt.Sprintf("%s joined as %s", name, ev.Participant))
	case event.Waiting:
		return c.paint(color.FgGray, fmt.Sprintf("%s is looking for someone...", name))
	case event.Connected:
		return c.paint(color.FgGreen, fmt.Sprintf("%s connected", name))
	case event.Typing:
		return c.paint(color.FgGray, fmt.Sprintf("%s is typing...", name))
	case event.StoppedTyping:
		return c.paint(color.FgGray, fmt.Sprintf("%s stopped typing", name))
	case event.GotMessage:
		return fmt.Sprintf("%s: %s", c.paint(color.FgCyan, name), ev.Data)
	case event.MessageModified:
		line := fmt.Sprintf("%s: %s", c.paint(color.FgCyan, name), ev.Data)
		if original, ok := ev.Original(); ok {
			line += " " + c.paint(color.FgYellow, fmt.Sprintf("(was: %s)", original.Data))
		}
		return line
	case event.Disconnected:
		return c.paint(color.FgRed, fmt.Sprintf("%s disconnected", name))
	case event.Timeout:
		return c.paint(color.FgRed, fmt.Sprintf("%s timed out", name))
	default:
		return ""
	}
}

// name returns the display name of p. Once every slot of a pool is taken, a newcomer
// means a new pool and the numbering starts over.
func (c *ConsoleSink) name(p event.ParticipantID) string {
	if name, ok := c.names[p]; ok {
		return name
	}
	if c.participants > 0 && len(c.names) >= c.participants {
		clear(c.names)
	}
	name := fmt.Sprintf("Stranger_%d", len(c.names)+1)
	c.names[p] = name
	return name
}

func (c *ConsoleSink) paint(colour color.Color, text string) string {
	if !c.colours {
		return text
	}
	return colour.Render(text)
}
