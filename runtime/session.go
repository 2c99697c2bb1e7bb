package runtime

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/remote"

	"github.com/google/uuid"
)

type SessionState int

const (
	Unidentified SessionState = iota
	Identified
	Active
	Disconnected
)

func (s SessionState) String() string {
	switch s {
	case Unidentified:
		return "unidentified"
	case Identified:
		return "identified"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one remote participant. It is owned by the orchestrator loop and must only
// be touched from it; requests run on their own goroutines and report back through
// the exchange as completions.
type Session struct {
	key        uuid.UUID
	id         event.ParticipantID
	userAgent  string
	generation uint64
	state      SessionState
	typing     bool
	wantTyping bool
	connected  bool

	// one request of each kind in flight at most
	starting bool
	polling  bool
	toggling bool
}

func NewSession(generation uint64) *Session {
	return &Session{
		key:        uuid.New(),
		userAgent:  remote.RandomUserAgent(),
		generation: generation,
		state:      Unidentified,
	}
}

func (s *Session) ID() event.ParticipantID { return s.id }
func (s *Session) State() SessionState     { return s.state }
func (s *Session) Typing() bool            { return s.typing }
func (s *Session) Connected() bool         { return s.connected }

// Initiate asks the remote for a participant id. It is a no-op once the session is
// identified or while a previous attempt is still running.
func (s *Session) Initiate(ctx context.Context, x *exchange) {
	if s.state != Unidentified || s.starting {
		return
	}
	s.starting = true
	x.send(ctx, s, remote.ActionStart, url.Values{})
}

// PollOnce fetches one events page. Polls of the same session never overlap so that
// events keep the remote order.
func (s *Session) PollOnce(ctx context.Context, x *exchange) {
	if s.state != Active || s.polling {
		return
	}
	s.polling = true
	x.send(ctx, s, remote.ActionEvents, url.Values{"id": {string(s.id)}})
}

// SetTyping records the wanted typing indicator and toggles it when the remote differs.
// The local flag only changes once the remote acknowledged the request; a toggle in
// flight is reconciled against the latest wish when it completes.
func (s *Session) SetTyping(ctx context.Context, x *exchange, typing bool) {
	s.wantTyping = typing
	s.reconcileTyping(ctx, x)
}

func (s *Session) reconcileTyping(ctx context.Context, x *exchange) {
	if s.id == "" || s.state == Disconnected || s.toggling || s.typing == s.wantTyping {
		return
	}
	s.toggling = true
	x.send(ctx, s, remote.ActionTyping, url.Values{"id": {string(s.id)}})
}

// SendMessage posts text. There is no local echo.
func (s *Session) SendMessage(ctx context.Context, x *exchange, text string) {
	if s.id == "" || s.state == Disconnected {
		return
	}
	x.send(ctx, s, remote.ActionSend, url.Values{"msg": {text}, "id": {string(s.id)}})
}

// Disconnect retires the session at once and politely tells the remote, without
// waiting for the answer or for outstanding requests.
func (s *Session) Disconnect(ctx context.Context, x *exchange) {
	if s.state == Disconnected {
		return
	}
	s.state = Disconnected
	s.connected = false
	if s.id != "" {
		x.send(ctx, s, remote.ActionDisconnect, url.Values{"id": {string(s.id)}})
	}
}

// retire marks the session gone without telling the remote.
func (s *Session) retire() {
	s.state = Disconnected
	s.connected = false
}

// settle clears the in-flight flag of the action that just completed.
func (s *Session) settle(action remote.Action) {
	switch action {
	case remote.ActionStart:
		s.starting = false
	case remote.ActionEvents:
		s.polling = false
	case remote.ActionTyping:
		s.toggling = false
	}
}

type completion struct {
	session *Session
	action  remote.Action
	body    []byte
	err     error
}

// exchange runs remote requests concurrently and hands their completions back to the
// orchestrator loop. Once done is closed, completions are discarded.
type exchange struct {
	requester   contract.Requester
	completions chan completion
	done        chan struct{}
	wg          sync.WaitGroup
	log         *slog.Logger
}

func newExchange(requester contract.Requester, buffer int, log *slog.Logger) *exchange {
	return &exchange{
		requester:   requester,
		completions: make(chan completion, buffer),
		done:        make(chan struct{}),
		log:         log,
	}
}

func (x *exchange) send(ctx context.Context, s *Session, action remote.Action, form url.Values) {
	request := remote.Request{Action: action, UserAgent: s.userAgent, Form: form}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		body, err := x.requester.Do(ctx, request)
		select {
		case x.completions <- completion{session: s, action: action, body: body, err: err}:
		case <-x.done:
			if err != nil {
				x.log.Debug("Request failed after shutdown", "action", action, "error", err)
			}
		}
	}()
}

// close stops accepting completions and waits for in-flight requests.
func (x *exchange) close() {
	close(x.done)
	x.wg.Wait()
}
