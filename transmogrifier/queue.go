package transmogrifier

import "chat-relay/domain/event"

// EventQueue is the FIFO output sink of a Transmogrifier.
// It is appended to and drained by a single goroutine, the orchestrator loop.
type EventQueue struct {
	events []event.Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (q *EventQueue) Push(ev event.Event) {
	q.events = append(q.events, ev)
}

// Pop removes and returns the oldest event.
func (q *EventQueue) Pop() (event.Event, bool) {
	if len(q.events) == 0 {
		return event.Event{}, false
	}
	ev := q.events[0]
	q.events[0] = event.Event{}
	q.events = q.events[1:]
	return ev, true
}

// Drain removes and returns every queued event in order.
func (q *EventQueue) Drain() []event.Event {
	events := q.events
	q.events = nil
	return events
}

func (q *EventQueue) Len() int {
	return len(q.events)
}
