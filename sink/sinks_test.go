package sink

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"chat-relay/domain/event"
	"chat-relay/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTranscriptSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockITranscriptRepository(ctrl)
	transcript := NewTranscriptSink(repository)

	// Given any event, it is stored as is
	ev := event.New("s1", event.Typing, "")
	repository.EXPECT().Store(ev).Return(nil)
	req.NoError(transcript.Notify(context.Background(), ev))

	// When the store fails, the error is surfaced
	failed := event.New("s1", event.GotMessage, "hi")
	repository.EXPECT().Store(failed).Return(fmt.Errorf("disk full"))
	req.Error(transcript.Notify(context.Background(), failed))
}

func TestSearchSink_IndexesMessagesOnly(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	index := mocks.NewMockISearchIndex(ctrl)
	search := NewSearchSink(index)

	msg := event.New("s1", event.GotMessage, "hello")
	modified, err := event.Modify(msg, "howdy")
	req.NoError(err)

	// Then only message events reach the index
	index.EXPECT().Index(msg).Return(nil)
	index.EXPECT().Index(modified).Return(nil)

	req.NoError(search.Notify(context.Background(), msg))
	req.NoError(search.Notify(context.Background(), modified))
	req.NoError(search.Notify(context.Background(), event.New("s1", event.Typing, "")))
	req.NoError(search.Notify(context.Background(), event.New("s1", event.Disconnected, "")))
}

func TestLogSink(t *testing.T) {
	log := NewLogSink(logs.GetLoggerFromLevel(slog.LevelDebug))
	modified, err := event.Modify(event.New("s1", event.GotMessage, "guy"), "girl")
	require.NoError(t, err)
	require.NoError(t, log.Notify(context.Background(), modified))
}
