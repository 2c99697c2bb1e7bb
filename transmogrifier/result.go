package transmogrifier

import "chat-relay/domain/event"

// Result is the outcome of a spell: either the event to hand to the next spell, or a drop.
type Result struct {
	ev   event.Event
	keep bool
}

func Continue(ev event.Event) Result {
	return Result{ev: ev, keep: true}
}

func Drop() Result {
	return Result{}
}

// Event returns the event carried by the result, false when it was dropped.
func (r Result) Event() (event.Event, bool) {
	return r.ev, r.keep
}

func (r Result) Dropped() bool {
	return !r.keep
}
