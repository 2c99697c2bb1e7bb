package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/contract"
	"chat-relay/internal"
	"chat-relay/remote"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"chat-relay/spellbook"
	"chat-relay/transmogrifier"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal arrives or a worker fails fatally.
// Deferred cleanups (database, index) run before main exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Remote & Spells
	client, err := remote.NewClient(config.RemoteBaseURL, config.RequestTimeout, log)
	if err != nil {
		return fmt.Errorf("remote client: %w", err)
	}
	book, err := spellbook.Load(config.SpellbookPath, config.SpellbookName)
	if err != nil {
		return fmt.Errorf("spellbook loading failed: %w", err)
	}
	spells, err := book.Compile(log)
	if err != nil {
		return fmt.Errorf("spellbook compilation failed: %w", err)
	}
	mode, err := runtime.NewMode(config.Mode)
	if err != nil {
		return err
	}

	// 3. Orchestration
	orchestrator := runtime.NewOrchestrator(log, client, mode,
		transmogrifier.New(spells...), runtime.NewRegistry(log), config.RuntimeOptions())
	orchestrator.AddListener(sink.NewConsoleSink(os.Stdout, config.Participants, config.Colours))
	orchestrator.AddListener(sink.NewLogSink(log))

	// 4. Storage (optional)
	if config.BadgerFilepath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		orchestrator.AddListener(sink.NewTranscriptSink(repositories.NewTranscriptRepository(db, log)))
	}
	if config.BlugeFilepath != "" {
		index, err := repositories.OpenSearchIndex(config.BlugeFilepath, log)
		if err != nil {
			return fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing search index...")
			_ = index.Close()
		}()
		orchestrator.AddListener(sink.NewSearchSink(index))
	}

	// 5. Supervision
	supervised := []contract.Worker{
		orchestrator,
		workers.NewTelemetryWorker(log, config.TelemetryInterval, orchestrator),
	}
	if config.WatchSpellbook {
		supervised = append(supervised, workers.NewSpellbookWatcher(log, config.SpellbookPath, orchestrator))
	}
	sup := workers.NewSupervisor(log).WithRestartDelay(config.RestartInterval)
	sup.Add(supervised...)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting relay",
		slog.String("mode", config.Mode),
		slog.Int("participants", config.Participants),
		slog.Any("spells", book.Names()))

	if err := sup.Run(ctx); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}
