package runtime

import (
	"context"
	"fmt"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/remote"
)

// fakeRemote hands out ids s1, s2, ... and serves queued events pages per participant.
type fakeRemote struct {
	mu      sync.Mutex
	started int
	pages   map[string][]string
	calls   []remote.Request
	failing map[remote.Action]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{pages: map[string][]string{}, failing: map[remote.Action]error{}}
}

func (f *fakeRemote) queue(id string, pages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[id] = append(f.pages[id], pages...)
}

func (f *fakeRemote) fail(action remote.Action, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[action] = err
}

func (f *fakeRemote) Do(_ context.Context, r remote.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)

	if err, ok := f.failing[r.Action]; ok {
		return nil, err
	}

	switch r.Action {
	case remote.ActionStart:
		f.started++
		return []byte(fmt.Sprintf("%q", fmt.Sprintf("s%d", f.started))), nil
	case remote.ActionEvents:
		id := r.Form.Get("id")
		pages := f.pages[id]
		if len(pages) == 0 {
			return []byte("null"), nil
		}
		f.pages[id] = pages[1:]
		return []byte(pages[0]), nil
	default:
		return []byte("win"), nil
	}
}

func (f *fakeRemote) count(action remote.Action, id event.ParticipantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Action == action && (id == "" || c.Form.Get("id") == string(id)) {
			n++
		}
	}
	return n
}

func (f *fakeRemote) sent(id event.ParticipantID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var messages []string
	for _, c := range f.calls {
		if c.Action == remote.ActionSend && c.Form.Get("id") == string(id) {
			messages = append(messages, c.Form.Get("msg"))
		}
	}
	return messages
}

// recorder is a listener keeping every event it is notified of.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Notify(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]event.Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (r *recorder) find(kind event.Kind) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return event.Event{}, false
}
