package spellbook

import (
	"fmt"
	"log/slog"
	"strings"

	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/language"
	"chat-relay/moderation"
	"chat-relay/transmogrifier"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// Substitute rewrites message text token by token. A modification is only emitted when
// the text actually changed beyond case and spacing.
func Substitute(tokenizer *language.Tokenizer, substitutions *language.SubstitutionMap) transmogrifier.Spell {
	return transmogrifier.OnlyMessages(func(_ *transmogrifier.Transmogrifier, ev event.Event) transmogrifier.Result {
		translated := substitutions.Translate(tokenizer.Tokenize(ev.Data))
		return modifyIfChanged(ev, translated)
	})
}

// NewCensor masks forbidden words with replacement.
func NewCensor(words []string, replacement rune, log *slog.Logger) (transmogrifier.Spell, error) {
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	moderator, err := moderation.NewModerator(words, replacement, log)
	if err != nil {
		return nil, err
	}
	return Censor(moderator), nil
}

func Censor(moderator *moderation.Moderator) transmogrifier.Spell {
	return transmogrifier.OnlyMessages(func(_ *transmogrifier.Transmogrifier, ev event.Event) transmogrifier.Result {
		censored, words := moderator.Censor(ev.Data)
		if len(words) == 0 {
			return transmogrifier.Continue(ev)
		}
		return modifyIfChanged(ev, censored)
	})
}

// Languages drops messages reliably detected as written in a language outside allowed.
// Short or ambiguous messages are kept.
func Languages(allowed ...string) transmogrifier.Spell {
	allowed = lo.Map(allowed, func(code string, _ int) string { return strings.ToLower(code) })
	return transmogrifier.OnlyMessages(func(_ *transmogrifier.Transmogrifier, ev event.Event) transmogrifier.Result {
		info := whatlanggo.Detect(ev.Data)
		if !info.IsReliable() {
			return transmogrifier.Continue(ev)
		}
		if lo.Contains(allowed, info.Lang.Iso6391()) {
			return transmogrifier.Continue(ev)
		}
		return transmogrifier.Drop()
	})
}

// DropKinds drops every event of the given kinds.
func DropKinds(kinds ...event.Kind) transmogrifier.Spell {
	return func(_ *transmogrifier.Transmogrifier, ev event.Event) transmogrifier.Result {
		if lo.Contains(kinds, ev.Kind) {
			return transmogrifier.Drop()
		}
		return transmogrifier.Continue(ev)
	}
}

func modifyIfChanged(ev event.Event, text string) transmogrifier.Result {
	if !transmogrifier.ContentsModified(ev.Data, text) {
		return transmogrifier.Continue(ev)
	}
	modified, err := transmogrifier.ModifyMessage(ev, text)
	if err != nil {
		return transmogrifier.Continue(ev)
	}
	return transmogrifier.Continue(modified)
}

func parseKinds(tags []string) ([]event.Kind, error) {
	kinds := make([]event.Kind, 0, len(tags))
	for _, tag := range tags {
		kind, ok := event.ParseKind(tag)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownKind, tag)
		}
		// sessions wait for their id before being polled
		if kind == event.IDSet {
			return nil, fmt.Errorf("%w: %s cannot be dropped", errors.ErrInvalidSpellbook, tag)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
