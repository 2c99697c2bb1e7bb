// Package event defines the uniform event stream produced from the remote chat protocol.
// Events are immutable values: they are built by constructors and never mutated afterwards.
package event

import (
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParticipantID is the opaque identifier the remote service assigns to a session.
// It is empty until the session has been identified.
type ParticipantID string

type Event struct {
	ID          uuid.UUID
	Participant ParticipantID
	Kind        Kind
	Data        string
	At          time.Time
	original    *Event
}

// New creates an event for a participant.
func New(participant ParticipantID, kind Kind, data string) Event {
	return Event{
		ID:          uuid.New(),
		Participant: participant,
		Kind:        kind,
		Data:        data,
		At:          time.Now().UTC(),
	}
}

// Modify builds a MessageModified event carrying text.
// When ev is already a modification, the new event references ev's original so that
// the back-reference always points at the pristine GotMessage.
func Modify(ev Event, text string) (Event, error) {
	if !ev.IsMessage() {
		return Event{}, fmt.Errorf("%w: %s", errors.ErrNotAMessage, ev.Kind)
	}
	original := ev
	if ev.Kind == MessageModified && ev.original != nil {
		original = *ev.original
	}
	modified := New(original.Participant, MessageModified, text)
	modified.original = &original
	return modified, nil
}

// Original returns the GotMessage a MessageModified event was derived from.
func (e Event) Original() (Event, bool) {
	if e.original == nil {
		return Event{}, false
	}
	return *e.original, true
}

// WithOriginal returns a copy of e referencing original. It rebuilds stored modifications.
func (e Event) WithOriginal(original Event) Event {
	e.original = &original
	return e
}

// IsMessage reports whether the event carries chat text.
func (e Event) IsMessage() bool {
	return e.Kind == GotMessage || e.Kind == MessageModified
}

func (e Event) String() string {
	if e.Data == "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Participant)
	}
	return fmt.Sprintf("%s(%s, %q)", e.Kind, e.Participant, e.Data)
}
