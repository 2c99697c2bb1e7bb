package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/language"
	"chat-relay/mocks"
	"chat-relay/remote"
	"chat-relay/spellbook"
	"chat-relay/transmogrifier"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestOrchestrator(t *testing.T, fake *fakeRemote, mode string, opts Options, spells ...transmogrifier.Spell) (*Orchestrator, *recorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	requester := mocks.NewMockRequester(ctrl)
	requester.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(fake.Do).AnyTimes()

	m, err := NewMode(mode)
	require.NoError(t, err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	listener := &recorder{}
	registry := NewRegistry(log)
	registry.Add(listener)

	if opts.Participants == 0 {
		opts.Participants = 2
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = tick
	}
	o := NewOrchestrator(log, requester, m, transmogrifier.New(spells...), registry, opts)
	return o, listener
}

// run starts the loop and returns a function stopping it and returning Run's error.
func run(o *Orchestrator) func() error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func TestOrchestrator_RelayMessage(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	o, listener := newTestOrchestrator(t, fake, ModeRelay, Options{})

	// Given s1 says hello once
	fake.queue("s1", `[["connected"], ["gotMessage", "hello"]]`)
	stop := run(o)

	// Then s2 receives exactly one send of the message
	req.Eventually(func() bool { return len(fake.sent("s2")) == 1 }, waitFor, tick)
	time.Sleep(10 * tick)
	req.NoError(stop())

	req.Equal([]string{"hello"}, fake.sent("s2"))
	// And s1 gets no echo
	req.Empty(fake.sent("s1"))

	msg, ok := listener.find(event.GotMessage)
	req.True(ok)
	req.Equal(event.ParticipantID("s1"), msg.Participant)
	req.Equal(uint64(1), o.Stats().Barriers)
}

func TestOrchestrator_RelayAfterTransform(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	swap := spellbook.Substitute(
		language.NewTokenizer([]string{"I'm"}, false),
		language.NewSubstitutionMap([]language.Substitution{{From: "guy", To: "girl"}}))
	o, listener := newTestOrchestrator(t, fake, ModeRelay, Options{}, swap)

	fake.queue("s2", `[["gotMessage", "I'm a Guy"]]`)
	stop := run(o)

	// Then s1 receives the transformed text
	req.Eventually(func() bool { return len(fake.sent("s1")) == 1 }, waitFor, tick)
	req.NoError(stop())
	req.Equal([]string{"I'm a Girl"}, fake.sent("s1"))

	// And listeners saw the modification with the original attached
	modified, ok := listener.find(event.MessageModified)
	req.True(ok)
	original, ok := modified.Original()
	req.True(ok)
	req.Equal("I'm a Guy", original.Data)
	_, ok = listener.find(event.GotMessage)
	req.False(ok)
}

func TestOrchestrator_RelayDisconnectRestarts(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	o, _ := newTestOrchestrator(t, fake, ModeRelay, Options{})

	// Given s1 leaves right after the pairing
	fake.queue("s1", `[["strangerDisconnected"]]`)
	stop := run(o)

	// Then s2 is disconnected and the pool is repopulated with two fresh sessions
	req.Eventually(func() bool {
		return o.Stats().Barriers == 2 && fake.count(remote.ActionDisconnect, "s2") == 1
	}, waitFor, tick)

	// And s2 was disconnected exactly once, s1 never
	req.Equal(1, fake.count(remote.ActionDisconnect, "s2"))
	req.Zero(fake.count(remote.ActionDisconnect, "s1"))
	req.Equal(4, fake.count(remote.ActionStart, ""))

	stats := o.Stats()
	req.Equal(uint64(1), stats.Restarts)
	req.Equal(uint64(2), stats.Generation)

	// When stopping, the live sessions are released politely
	req.NoError(stop())
	req.Equal(1, fake.count(remote.ActionDisconnect, "s2"))
	req.Equal(1, fake.count(remote.ActionDisconnect, "s3"))
	req.Equal(1, fake.count(remote.ActionDisconnect, "s4"))
}

func TestOrchestrator_RelayTyping(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	o, _ := newTestOrchestrator(t, fake, ModeRelay, Options{})

	fake.queue("s1", `[["typing"]]`)
	stop := run(o)

	req.Eventually(func() bool { return fake.count(remote.ActionTyping, "s2") == 1 }, waitFor, tick)
	time.Sleep(10 * tick)
	req.NoError(stop())

	req.Equal(1, fake.count(remote.ActionTyping, "s2"))
	req.Zero(fake.count(remote.ActionTyping, "s1"))
}

func TestOrchestrator_PassiveRestartsWhenAlone(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	o, listener := newTestOrchestrator(t, fake, ModePassive, Options{Participants: 1})

	fake.queue("s1", `[["waiting"], ["connected"], ["gotMessage", "hi"], ["strangerDisconnected"]]`)
	stop := run(o)

	req.Eventually(func() bool { return o.Stats().Generation == 2 }, waitFor, tick)
	req.NoError(stop())

	// Then nothing was relayed and the stranger who left was not disconnected again
	req.Empty(fake.sent("s1"))
	req.Zero(fake.count(remote.ActionDisconnect, "s1"))
	req.Subset(listener.kinds(), []event.Kind{event.IDSet, event.Waiting, event.Connected, event.GotMessage, event.Disconnected})
}

func TestOrchestrator_ProtocolErrorOnStartIsFatal(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	fake.fail(remote.ActionStart, errors.ErrProtocol)
	o, _ := newTestOrchestrator(t, fake, ModeRelay, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	err := o.Run(ctx)
	req.ErrorIs(err, errors.ErrFatal)
	req.ErrorIs(err, errors.ErrProtocol)
}

func TestOrchestrator_ReplaceSpells(t *testing.T) {
	req := require.New(t)
	fake := newFakeRemote()
	o, _ := newTestOrchestrator(t, fake, ModeRelay, Options{})
	stop := run(o)

	ctx := context.Background()
	req.NoError(o.ReplaceSpells(ctx, spellbook.DropKinds(event.GotMessage)))
	req.Eventually(func() bool { return len(o.transmogrifier.Spells()) == 1 }, waitFor, tick)

	// Given a message arrives after the replacement
	fake.queue("s1", `[["gotMessage", "secret"]]`)
	req.Eventually(func() bool { return o.Stats().Dropped == 1 }, waitFor, tick)
	req.NoError(stop())

	// Then it was dropped and never relayed
	req.Empty(fake.sent("s2"))
}

// The following tests drive the loop by hand to control completion order.

func newManualOrchestrator(t *testing.T, fake *fakeRemote, opts Options) (*Orchestrator, *recorder) {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour
	}
	o, listener := newTestOrchestrator(t, fake, ModeRelay, opts)
	o.x = newExchange(o.requester, 16, o.log)
	t.Cleanup(o.x.close)
	return o, listener
}

func TestOrchestrator_BarrierFiresOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fake := newFakeRemote()
	o, _ := newManualOrchestrator(t, fake, Options{Participants: 2})

	o.populate(ctx)

	// When the first session is identified
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.Equal(1, o.remaining)
	req.False(o.barrierCleared)
	req.Len(o.Active(), 1)

	// When the second one is
	req.NoError(o.complete(ctx, <-o.x.completions))

	// Then the barrier clears once and both sessions are polled
	req.Zero(o.remaining)
	req.True(o.barrierCleared)
	req.ElementsMatch([]event.ParticipantID{"s1", "s2"}, o.Active())
	req.Equal(uint64(1), o.Stats().Barriers)
	for range 2 {
		c := <-o.x.completions
		req.Equal(remote.ActionEvents, c.action)
		req.NoError(o.complete(ctx, c))
	}

	// When a spurious id shows up for an already active session
	err := o.feed(ctx, event.New("s1", event.IDSet, ""))

	// Then it is fatal and the counters are untouched
	req.ErrorIs(err, errors.ErrFatal)
	req.ErrorIs(err, errors.ErrBarrierUnderflow)
	req.Zero(o.remaining)
	req.Equal(uint64(1), o.Stats().Barriers)

	// And so is an id nobody asked for
	err = o.handle(ctx, event.New("ghost", event.IDSet, ""))
	req.ErrorIs(err, errors.ErrBarrierUnderflow)
}

func TestOrchestrator_LateStartIsReleased(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fake := newFakeRemote()
	o, _ := newManualOrchestrator(t, fake, Options{Participants: 2})

	// Given a restart before the first pool got its ids
	o.populate(ctx)
	o.Restart(ctx)
	req.Equal(uint64(2), o.Stats().Generation)

	// When all four start requests complete
	starts := 0
	for starts < 4 {
		c := <-o.x.completions
		if c.action == remote.ActionStart {
			starts++
		}
		req.NoError(o.complete(ctx, c))
	}

	// Then only the fresh pool is identified
	req.True(o.barrierCleared)
	req.Len(o.Active(), 2)

	// And the two ids obtained too late are released
	req.Eventually(func() bool { return fake.count(remote.ActionDisconnect, "") == 2 }, waitFor, tick)
	for _, id := range o.Active() {
		req.Zero(fake.count(remote.ActionDisconnect, id))
	}
}

func TestOrchestrator_Timeouts(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{name: "Swallowed", verbose: false},
		{name: "Surfaced", verbose: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			fake := newFakeRemote()
			fake.fail(remote.ActionStart, errors.ErrTimeout)
			o, listener := newManualOrchestrator(t, fake, Options{Participants: 1, VerboseTimeouts: tt.verbose})

			o.populate(ctx)
			req.NoError(o.complete(ctx, <-o.x.completions))

			// Then the session waits for the next tick to retry
			s := o.pool[0]
			req.Equal(Unidentified, s.State())
			req.False(s.starting)

			_, surfaced := listener.find(event.Timeout)
			req.Equal(tt.verbose, surfaced)

			o.tick(ctx)
			req.True(s.starting)
		})
	}
}

func TestOrchestrator_MalformedPageIsIgnored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fake := newFakeRemote()
	o, listener := newManualOrchestrator(t, fake, Options{Participants: 1})

	fake.queue("s1", `[["gotMessage"`, `[["connected"]]`)
	o.populate(ctx)
	req.NoError(o.complete(ctx, <-o.x.completions))

	// When the first page is garbage
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.Equal([]event.Kind{event.IDSet}, listener.kinds())

	// Then the next poll works as usual
	o.tick(ctx)
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.Equal([]event.Kind{event.IDSet, event.Connected}, listener.kinds())
	req.True(o.pool[0].Connected())
}

func TestOrchestrator_TypingFlipsOnAcknowledgement(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fake := newFakeRemote()
	o, _ := newManualOrchestrator(t, fake, Options{Participants: 1})

	o.populate(ctx)
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.NoError(o.complete(ctx, <-o.x.completions))
	s := o.pool[0]

	// When asking for the typing indicator
	o.SetTyping(ctx, s.ID(), true)

	// Then the flag waits for the remote
	req.False(s.Typing())
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.True(s.Typing())

	// And setting the same value again sends nothing
	o.SetTyping(ctx, s.ID(), true)
	req.Equal(1, fake.count(remote.ActionTyping, s.ID()))
}

func TestOrchestrator_TypingFollowsLastEvent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fake := newFakeRemote()
	o, _ := newManualOrchestrator(t, fake, Options{Participants: 2})

	// Given a stranger who starts and stops typing within one page
	fake.queue("s1", `[["typing"], ["stoppedTyping"]]`)
	o.populate(ctx)
	req.NoError(o.complete(ctx, <-o.x.completions))
	req.NoError(o.complete(ctx, <-o.x.completions))

	// When both polls and every typing toggle are acknowledged
	for range 4 {
		req.NoError(o.complete(ctx, <-o.x.completions))
	}

	// Then the other side ends up not typing after a second toggle
	s2, ok := o.session("s2")
	req.True(ok)
	req.False(s2.Typing())
	req.Equal(2, fake.count(remote.ActionTyping, "s2"))
	req.Zero(fake.count(remote.ActionTyping, "s1"))
}
