// Package transmogrifier runs events through an ordered chain of spells before they are
// dispatched. A spell may rewrite an event, replace it or drop it.
package transmogrifier

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Spell is one stage of the pipeline.
type Spell func(t *Transmogrifier, ev event.Event) Result

// OnlyMessages wraps a spell so that non-message events pass through untouched
// without invoking it.
func OnlyMessages(spell Spell) Spell {
	return func(t *Transmogrifier, ev event.Event) Result {
		if !ev.IsMessage() {
			return Continue(ev)
		}
		return spell(t, ev)
	}
}

// Transmogrifier applies its spells left to right and pushes the surviving events to the
// connected EventQueue. A drop short-circuits the remaining spells for that event.
type Transmogrifier struct {
	mu      sync.RWMutex
	spells  []Spell
	queue   *EventQueue
	cast    atomic.Uint64
	dropped atomic.Uint64
}

func New(spells ...Spell) *Transmogrifier {
	return &Transmogrifier{spells: append([]Spell(nil), spells...)}
}

// Connect sets the output queue. Cast fails until a queue is connected.
func (t *Transmogrifier) Connect(queue *EventQueue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = queue
}

// Cast runs every event through the spells, in order.
func (t *Transmogrifier) Cast(events ...event.Event) error {
	t.mu.RLock()
	queue := t.queue
	spells := t.spells
	t.mu.RUnlock()

	if queue == nil {
		return errors.ErrNotConnected
	}

	for _, ev := range events {
		t.cast.Add(1)
		out, ok := t.apply(spells, ev)
		if !ok {
			t.dropped.Add(1)
			continue
		}
		queue.Push(out)
	}
	return nil
}

func (t *Transmogrifier) apply(spells []Spell, ev event.Event) (event.Event, bool) {
	for _, spell := range spells {
		next, ok := spell(t, ev).Event()
		if !ok {
			return event.Event{}, false
		}
		ev = next
	}
	return ev, true
}

// Push appends a spell at the end of the chain.
func (t *Transmogrifier) Push(spell Spell) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spells = append(t.spells, spell)
}

// Purge removes every spell and installs the given ones, if any.
func (t *Transmogrifier) Purge(spells ...Spell) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spells = append([]Spell(nil), spells...)
}

// Spells returns the spells in casting order.
func (t *Transmogrifier) Spells() []Spell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Spell(nil), t.spells...)
}

// Counters returns how many events were cast and how many of them were dropped.
func (t *Transmogrifier) Counters() (cast, dropped uint64) {
	return t.cast.Load(), t.dropped.Load()
}

// ModifyMessage replaces the text of a message event. The resulting MessageModified
// always references the pristine GotMessage.
func ModifyMessage(ev event.Event, text string) (event.Event, error) {
	return event.Modify(ev, text)
}

// ContentsModified reports whether two messages differ once case and whitespace are ignored.
func ContentsModified(a, b string) bool {
	return squash(a) != squash(b)
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
