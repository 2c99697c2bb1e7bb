package workers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"chat-relay/spellbook"
	"chat-relay/transmogrifier"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// SpellReplacer swaps the spells of a running pipeline.
type SpellReplacer interface {
	ReplaceSpells(ctx context.Context, spells ...transmogrifier.Spell) error
}

// SpellbookWatcher reloads a spellbook file whenever it changes on disk and hands the
// compiled spells to the replacer. An invalid file is reported and the current spells stay.
type SpellbookWatcher struct {
	log      *slog.Logger
	path     string
	replacer SpellReplacer
	debounce time.Duration
}

func NewSpellbookWatcher(log *slog.Logger, path string, replacer SpellReplacer) *SpellbookWatcher {
	return &SpellbookWatcher{log: log, path: filepath.Clean(path), replacer: replacer, debounce: defaultDebounce}
}

// WithDebounce sets how long the file must stay quiet before it is reloaded.
func (w *SpellbookWatcher) WithDebounce(d time.Duration) *SpellbookWatcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

func (w *SpellbookWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace the file rather than write it, so the directory is watched.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.log.Info("Watching spellbook", "path", w.path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Spellbook watcher error", "error", err)
		case <-pending:
			pending = nil
			w.reload(ctx)
		}
	}
}

func (w *SpellbookWatcher) reload(ctx context.Context) {
	book, err := spellbook.LoadFile(w.path)
	if err != nil {
		w.log.Warn("Spellbook not reloaded, keeping current spells", "path", w.path, "error", err)
		return
	}
	spells, err := book.Compile(w.log)
	if err != nil {
		w.log.Warn("Spellbook not compiled, keeping current spells", "path", w.path, "error", err)
		return
	}
	if err := w.replacer.ReplaceSpells(ctx, spells...); err != nil {
		w.log.Warn("Spells not replaced", "error", err)
		return
	}
	w.log.Info("Spellbook reloaded", "path", w.path, "spells", book.Names())
}
