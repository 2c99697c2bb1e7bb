package sink

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	log *slog.Logger
}

var _ contract.Listener = LogSink{}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (l LogSink) Notify(ctx context.Context, ev event.Event) error {
	attrs := []any{"id", ev.ID, "participant", ev.Participant, "kind", ev.Kind.String()}
	if ev.Data != "" {
		attrs = append(attrs, "data", ev.Data)
	}
	if original, ok := ev.Original(); ok {
		attrs = append(attrs, "original", original.Data)
	}
	l.log.DebugContext(ctx, "Event", attrs...)
	return nil
}
