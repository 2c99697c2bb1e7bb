package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// ErrFatal marks errors which must halt the supervisor instead of restarting the worker.
	ErrFatal            = fmt.Errorf("fatal")
	ErrBarrierUnderflow = fmt.Errorf("too many participant ids for pending sessions")
	ErrProtocol         = fmt.Errorf("unexpected response status")
	ErrTimeout          = fmt.Errorf("request timed out")
	ErrMalformedPayload = fmt.Errorf("malformed payload")
	ErrEmptyID          = fmt.Errorf("empty participant id")

	ErrNotConnected = fmt.Errorf("transmogrifier is not connected to an event queue")
	ErrNotAMessage  = fmt.Errorf("cannot modify a non-message event")
	ErrListenerGone = fmt.Errorf("listener is gone")
	ErrUnknownKind  = fmt.Errorf("unknown event kind")

	ErrUnknownSpell     = fmt.Errorf("unknown spell type")
	ErrInvalidSpellbook = fmt.Errorf("invalid spellbook")
)
