// Package runtime drives the chat sessions: it owns the session pool, runs the event loop,
// synchronizes the sessions behind a barrier and fans events out to listeners.
package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/remote"
	"chat-relay/transmogrifier"

	"github.com/samber/lo"
)

type Options struct {
	Participants    int
	PollInterval    time.Duration
	ListenerTimeout time.Duration
	// RequestTimeout bounds the polite disconnects sent on shutdown.
	RequestTimeout  time.Duration
	VerboseTimeouts bool
}

type Stats struct {
	Dispatched uint64
	Cast       uint64
	Dropped    uint64
	Restarts   uint64
	Barriers   uint64
	Generation uint64
}

// Orchestrator owns a pool of sessions, the transmogrifier they feed and the listener
// registry. All session state is confined to the goroutine running Run.
type Orchestrator struct {
	log            *slog.Logger
	requester      contract.Requester
	mode           contract.Mode
	transmogrifier *transmogrifier.Transmogrifier
	queue          *transmogrifier.EventQueue
	registry       *Registry
	opts           Options
	commands       chan func(ctx context.Context) error

	// loop state
	x              *exchange
	pool           []*Session
	remaining      int
	barrierCleared bool

	dispatched atomic.Uint64
	restarts   atomic.Uint64
	barriers   atomic.Uint64
	generation atomic.Uint64
}

var _ contract.Worker = (*Orchestrator)(nil)
var _ contract.Controller = (*Orchestrator)(nil)

func NewOrchestrator(log *slog.Logger, requester contract.Requester, mode contract.Mode,
	tr *transmogrifier.Transmogrifier, registry *Registry, opts Options) *Orchestrator {
	if opts.Participants < 1 {
		opts.Participants = 1
	}
	queue := transmogrifier.NewEventQueue()
	tr.Connect(queue)
	return &Orchestrator{
		log:            log,
		requester:      requester,
		mode:           mode,
		transmogrifier: tr,
		queue:          queue,
		registry:       registry,
		opts:           opts,
		commands:       make(chan func(ctx context.Context) error, 8),
	}
}

// Run is the event loop. It returns nil when ctx is cancelled and an error wrapping
// errors.ErrFatal when an invariant is violated.
func (o *Orchestrator) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	o.x = newExchange(o.requester, 4*o.opts.Participants, o.log)
	defer o.shutdown(parent, cancel)

	o.populate(ctx)

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Debug("Stopping orchestrator")
			return nil
		case c := <-o.x.completions:
			if err := o.complete(ctx, c); err != nil {
				return o.fatal(err)
			}
		case cmd := <-o.commands:
			if err := cmd(ctx); err != nil {
				return o.fatal(err)
			}
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) fatal(err error) error {
	o.log.Error("Orchestrator halted", "error", err)
	if !stderrors.Is(err, errors.ErrFatal) {
		return fmt.Errorf("%w: %w", errors.ErrFatal, err)
	}
	return err
}

// shutdown politely disconnects every live session, cancels outstanding polls and waits
// for in-flight requests.
func (o *Orchestrator) shutdown(parent context.Context, cancelLoop context.CancelFunc) {
	timeout := o.opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	for _, s := range o.pool {
		s.Disconnect(detached, o.x)
	}
	o.pool = nil
	cancelLoop()
	o.x.close()
}

// populate starts a new generation of sessions and re-arms the barrier.
func (o *Orchestrator) populate(ctx context.Context) {
	generation := o.generation.Add(1)
	o.pool = make([]*Session, o.opts.Participants)
	for i := range o.pool {
		o.pool[i] = NewSession(generation)
	}
	o.remaining = o.opts.Participants
	o.barrierCleared = false

	o.log.Info("Starting sessions", "participants", o.opts.Participants, "generation", generation)
	for _, s := range o.pool {
		s.Initiate(ctx, o.x)
	}
}

// tick re-initiates sessions still waiting for an id, or polls once the barrier cleared.
func (o *Orchestrator) tick(ctx context.Context) {
	if !o.barrierCleared {
		for _, s := range o.pool {
			s.Initiate(ctx, o.x)
		}
		return
	}
	o.pump(ctx)
}

func (o *Orchestrator) pump(ctx context.Context) {
	for _, s := range o.pool {
		s.PollOnce(ctx, o.x)
	}
}

func (o *Orchestrator) owns(s *Session) bool {
	return s.state != Disconnected && lo.Contains(o.pool, s)
}

// complete handles the answer to one request.
func (o *Orchestrator) complete(ctx context.Context, c completion) error {
	s := c.session
	s.settle(c.action)

	if !o.owns(s) {
		o.late(ctx, c)
		return nil
	}
	if c.err != nil {
		return o.failed(ctx, c)
	}

	switch c.action {
	case remote.ActionStart:
		id, err := remote.ParseID(c.body)
		if err != nil {
			o.log.Warn("Could not read participant id", "error", err)
			return nil
		}
		s.id = id
		s.state = Identified
		return o.feed(ctx, event.New(id, event.IDSet, ""))
	case remote.ActionEvents:
		events, err := remote.ParseEvents(s.id, c.body)
		if err != nil {
			o.log.Warn("Discarding events page", "participant", s.id, "error", err)
			return nil
		}
		for _, ev := range events {
			switch ev.Kind {
			case event.Connected:
				s.connected = true
			case event.Disconnected:
				s.connected = false
			}
		}
		if len(events) == 0 {
			return nil
		}
		return o.feed(ctx, events...)
	case remote.ActionTyping:
		s.typing = !s.typing
		s.reconcileTyping(ctx, o.x)
	}
	return nil
}

// late handles a completion for a session that is no longer in the pool. An id obtained
// too late is released right away.
func (o *Orchestrator) late(ctx context.Context, c completion) {
	if c.action != remote.ActionStart || c.err != nil {
		o.log.Debug("Dropping completion of a retired session", "action", c.action)
		return
	}
	id, err := remote.ParseID(c.body)
	if err != nil {
		return
	}
	o.log.Debug("Releasing id obtained by a retired session", "participant", id)
	orphan := &Session{id: id, userAgent: c.session.userAgent, state: Identified}
	orphan.Disconnect(ctx, o.x)
}

func (o *Orchestrator) failed(ctx context.Context, c completion) error {
	s := c.session
	switch {
	case stderrors.Is(c.err, errors.ErrTimeout):
		if o.opts.VerboseTimeouts {
			return o.feed(ctx, event.New(s.id, event.Timeout, string(c.action)))
		}
		return nil
	case stderrors.Is(c.err, errors.ErrProtocol) && c.action == remote.ActionStart:
		return fmt.Errorf("%w: %w", errors.ErrFatal, c.err)
	case stderrors.Is(c.err, errors.ErrProtocol):
		o.log.Warn("Protocol error", "participant", s.id, "action", c.action, "error", c.err)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		o.log.Warn("Request failed", "participant", s.id, "action", c.action, "error", c.err)
		return nil
	}
}

// feed runs events through the transmogrifier and dispatches whatever comes out.
func (o *Orchestrator) feed(ctx context.Context, events ...event.Event) error {
	if err := o.transmogrifier.Cast(events...); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrFatal, err)
	}
	for {
		ev, ok := o.queue.Pop()
		if !ok {
			return nil
		}
		o.dispatched.Add(1)
		o.registry.Dispatch(ctx, ev, o.opts.ListenerTimeout)
		if err := o.handle(ctx, ev); err != nil {
			return err
		}
	}
}

// handle is the orchestrator's own reaction to an event, after listeners saw it.
func (o *Orchestrator) handle(ctx context.Context, ev event.Event) error {
	switch ev.Kind {
	case event.IDSet:
		return o.identified(ctx, ev.Participant)
	case event.GotMessage, event.MessageModified:
		if !o.isActive(ev.Participant) {
			return nil
		}
		return o.mode.OnMessage(ctx, o, ev)
	case event.Typing, event.StoppedTyping:
		if !o.isActive(ev.Participant) {
			return nil
		}
		return o.mode.OnTyping(ctx, o, ev)
	case event.Disconnected:
		if !o.isActive(ev.Participant) {
			return nil
		}
		return o.mode.OnDisconnected(ctx, o, ev)
	case event.Waiting, event.Connected, event.Timeout:
		return nil
	default:
		o.log.Warn("Unhandled event", "kind", ev.Kind)
		return nil
	}
}

// identified moves a pending session to the active set. The shared polling starts when
// the last pending session is identified. An id that matches no pending session means
// the barrier count can no longer be trusted.
func (o *Orchestrator) identified(ctx context.Context, id event.ParticipantID) error {
	s, found := lo.Find(o.pool, func(s *Session) bool { return s.id == id && s.state == Identified })
	if !found {
		return fmt.Errorf("%w: %w: %s", errors.ErrFatal, errors.ErrBarrierUnderflow, id)
	}
	s.state = Active
	o.remaining--

	switch {
	case o.remaining < 0:
		return fmt.Errorf("%w: %w: remaining=%d", errors.ErrFatal, errors.ErrBarrierUnderflow, o.remaining)
	case o.remaining == 0 && !o.barrierCleared:
		o.barrierCleared = true
		o.barriers.Add(1)
		o.log.Info("All participants identified", "participants", lo.Map(o.pool, func(s *Session, _ int) event.ParticipantID { return s.id }))
		o.pump(ctx)
	}
	return nil
}

func (o *Orchestrator) session(p event.ParticipantID) (*Session, bool) {
	return lo.Find(o.pool, func(s *Session) bool { return s.id == p && s.state == Active })
}

func (o *Orchestrator) isActive(p event.ParticipantID) bool {
	_, ok := o.session(p)
	return ok
}

// Peers returns the active participants other than p.
func (o *Orchestrator) Peers(p event.ParticipantID) []event.ParticipantID {
	return lo.Without(o.Active(), p)
}

func (o *Orchestrator) Active() []event.ParticipantID {
	return lo.FilterMap(o.pool, func(s *Session, _ int) (event.ParticipantID, bool) {
		return s.id, s.state == Active
	})
}

func (o *Orchestrator) SendMessage(ctx context.Context, p event.ParticipantID, text string) {
	if s, ok := o.session(p); ok {
		s.SendMessage(ctx, o.x, text)
	}
}

// SetTyping drives the typing indicator of p towards typing.
func (o *Orchestrator) SetTyping(ctx context.Context, p event.ParticipantID, typing bool) {
	if s, ok := o.session(p); ok {
		s.SetTyping(ctx, o.x, typing)
	}
}

func (o *Orchestrator) Retire(p event.ParticipantID) {
	if s, ok := o.session(p); ok {
		s.retire()
	}
}

// Restart politely disconnects the surviving sessions and starts a fresh pool.
func (o *Orchestrator) Restart(ctx context.Context) {
	for _, s := range o.pool {
		s.Disconnect(ctx, o.x)
	}
	o.restarts.Add(1)
	o.log.Info("Restarting", "restarts", o.restarts.Load())
	o.populate(ctx)
}

// ReplaceSpells swaps the transmogrifier spells between two loop turns.
func (o *Orchestrator) ReplaceSpells(ctx context.Context, spells ...transmogrifier.Spell) error {
	return o.submit(ctx, func(context.Context) error {
		o.transmogrifier.Purge(spells...)
		o.log.Info("Spells replaced", "spells", len(spells))
		return nil
	})
}

func (o *Orchestrator) submit(ctx context.Context, cmd func(ctx context.Context) error) error {
	select {
	case o.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddListener subscribes a listener. It is safe to call while the loop runs.
func (o *Orchestrator) AddListener(listener contract.Listener) ListenerID {
	return o.registry.Add(listener)
}

func (o *Orchestrator) RemoveListener(id ListenerID) bool {
	return o.registry.Remove(id)
}

func (o *Orchestrator) Stats() Stats {
	cast, dropped := o.transmogrifier.Counters()
	return Stats{
		Dispatched: o.dispatched.Load(),
		Cast:       cast,
		Dropped:    dropped,
		Restarts:   o.restarts.Load(),
		Barriers:   o.barriers.Load(),
		Generation: o.generation.Load(),
	}
}
