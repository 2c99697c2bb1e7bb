//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain/event"
	"chat-relay/remote"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context) error
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Requester performs one remote action and returns the response body.
type Requester interface {
	Do(ctx context.Context, r remote.Request) ([]byte, error)
}

// Listener consumes the transformed event stream.
// Returning errors.ErrListenerGone unsubscribes the listener.
type Listener interface {
	Notify(ctx context.Context, ev event.Event) error
}

// Controller is the set of control actions a Mode may trigger on the session pool.
type Controller interface {
	// Peers returns the active participants other than p.
	Peers(p event.ParticipantID) []event.ParticipantID
	Active() []event.ParticipantID
	SendMessage(ctx context.Context, p event.ParticipantID, text string)
	SetTyping(ctx context.Context, p event.ParticipantID, typing bool)
	// Retire drops a participant who already left, without notifying the remote.
	Retire(p event.ParticipantID)
	Restart(ctx context.Context)
}

// Mode reacts to the events the orchestrator handles on behalf of its sessions.
type Mode interface {
	OnMessage(ctx context.Context, ctl Controller, ev event.Event) error
	OnTyping(ctx context.Context, ctl Controller, ev event.Event) error
	OnDisconnected(ctx context.Context, ctl Controller, ev event.Event) error
}

type ITranscriptRepository interface {
	Store(ev event.Event) error
	Transcript(participant event.ParticipantID) ([]event.Event, error)
	Since(since time.Time, limit int) ([]event.Event, error)
}

type ISearchIndex interface {
	Index(ev event.Event) error
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	Close() error
}

type SearchHit struct {
	ID          string
	Participant event.ParticipantID
	Kind        string
	Text        string
	At          time.Time
	Score       float64
}
