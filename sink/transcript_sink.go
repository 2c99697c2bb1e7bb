package sink

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// TranscriptSink persists every event of the conversation.
type TranscriptSink struct {
	repository contract.ITranscriptRepository
}

var _ contract.Listener = TranscriptSink{}

func NewTranscriptSink(repository contract.ITranscriptRepository) TranscriptSink {
	return TranscriptSink{repository: repository}
}

func (t TranscriptSink) Notify(_ context.Context, ev event.Event) error {
	return t.repository.Store(ev)
}
