package runtime

import (
	"context"
	"fmt"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

const (
	ModeRelay   = "relay"
	ModePassive = "passive"
)

// NewMode returns the mode registered under name.
func NewMode(name string) (contract.Mode, error) {
	switch name {
	case ModeRelay:
		return Relay{}, nil
	case ModePassive:
		return Passive{}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", name)
	}
}

// Relay bridges the participants: what one says or types is forwarded to the others,
// and the pairing is void as soon as one of them leaves.
type Relay struct{}

var _ contract.Mode = Relay{}

func (Relay) OnMessage(ctx context.Context, ctl contract.Controller, ev event.Event) error {
	for _, peer := range ctl.Peers(ev.Participant) {
		ctl.SendMessage(ctx, peer, ev.Data)
	}
	return nil
}

func (Relay) OnTyping(ctx context.Context, ctl contract.Controller, ev event.Event) error {
	typing := ev.Kind == event.Typing
	for _, peer := range ctl.Peers(ev.Participant) {
		ctl.SetTyping(ctx, peer, typing)
	}
	return nil
}

func (Relay) OnDisconnected(ctx context.Context, ctl contract.Controller, ev event.Event) error {
	ctl.Retire(ev.Participant)
	ctl.Restart(ctx)
	return nil
}

// Passive only observes. A new pool is started once every participant has left.
type Passive struct{}

var _ contract.Mode = Passive{}

func (Passive) OnMessage(context.Context, contract.Controller, event.Event) error { return nil }

func (Passive) OnTyping(context.Context, contract.Controller, event.Event) error { return nil }

func (Passive) OnDisconnected(ctx context.Context, ctl contract.Controller, ev event.Event) error {
	ctl.Retire(ev.Participant)
	if len(ctl.Active()) == 0 {
		ctl.Restart(ctx)
	}
	return nil
}
