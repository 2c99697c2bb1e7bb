package sink

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// SearchSink indexes the messages, as delivered to the listeners, for full-text search.
type SearchSink struct {
	index contract.ISearchIndex
}

var _ contract.Listener = SearchSink{}

func NewSearchSink(index contract.ISearchIndex) SearchSink {
	return SearchSink{index: index}
}

func (s SearchSink) Notify(_ context.Context, ev event.Event) error {
	if !ev.IsMessage() {
		return nil
	}
	return s.index.Index(ev)
}
