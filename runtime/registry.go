package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type ListenerID uuid.UUID

func (id ListenerID) String() string { return uuid.UUID(id).String() }

type entry struct {
	id       ListenerID
	listener contract.Listener
}

// Registry holds the listeners of an orchestrator in registration order.
// It does not own them: callers add and remove listeners explicitly, and a listener
// that reports errors.ErrListenerGone is dropped during dispatch.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log}
}

// Add subscribes listener and returns the id to remove it with.
func (r *Registry) Add(listener contract.Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ListenerID(uuid.New())
	r.entries = append(r.entries, entry{id: id, listener: listener})
	return id
}

// Remove unsubscribes a listener. It reports false when the id is unknown.
func (r *Registry) Remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, index, found := lo.FindIndexOf(r.entries, func(e entry) bool { return e.id == id })
	if !found {
		return false
	}
	r.entries = append(r.entries[:index:index], r.entries[index+1:]...)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Listeners returns the subscribed listeners in registration order.
func (r *Registry) Listeners() []contract.Listener {
	return lo.Map(r.snapshot(), func(e entry, _ int) contract.Listener { return e.listener })
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry(nil), r.entries...)
}

// Dispatch notifies every listener of ev, in registration order. Each listener gets its
// own timeout. The pass iterates a snapshot, so listeners added or removed meanwhile
// only take part in the next one.
func (r *Registry) Dispatch(ctx context.Context, ev event.Event, timeout time.Duration) {
	for _, e := range r.snapshot() {
		err := r.notify(ctx, e.listener, ev, timeout)
		switch {
		case err == nil:
		case stderrors.Is(err, errors.ErrListenerGone):
			r.log.Debug("Listener gone, unsubscribing", "listener", e.id)
			r.Remove(e.id)
		default:
			r.log.Warn("Listener failed", "listener", e.id, "event", ev.Kind, "error", err)
		}
	}
}

func (r *Registry) notify(ctx context.Context, listener contract.Listener, ev event.Event, timeout time.Duration) error {
	if timeout <= 0 {
		return listener.Notify(ctx, ev)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return listener.Notify(ctx, ev)
}
