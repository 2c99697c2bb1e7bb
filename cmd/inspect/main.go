package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
	BlugeFilepath  string `envconfig:"BLUGE_FILEPATH"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	participant := flag.String("participant", "", "Print the transcript of one participant")
	since := flag.Duration("since", time.Hour, "Print the events stored during the last duration")
	limit := flag.Int("limit", 50, "Maximum number of rows")
	query := flag.String("search", "", "Full-text search over the relayed messages")
	flag.Parse()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	var err error
	switch {
	case *query != "":
		err = search(os.Stdout, config, *query, *limit)
	default:
		err = transcript(os.Stdout, config, event.ParticipantID(*participant), *since, *limit)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func transcript(out io.Writer, config Config, participant event.ParticipantID, since time.Duration, limit int) error {
	if config.BadgerFilepath == "" {
		return fmt.Errorf("BADGER_FILEPATH is not set")
	}
	// BypassLockGuard allows reading while the relay holds the lock
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repository := repositories.NewTranscriptRepository(db, logs.GetLoggerFromString(config.LogLevel))
	var events []event.Event
	if participant != "" {
		events, err = repository.Transcript(participant)
	} else {
		events, err = repository.Since(time.Now().Add(-since), limit)
	}
	if err != nil {
		return err
	}
	renderEvents(out, events)
	return nil
}

func search(out io.Writer, config Config, query string, limit int) error {
	if config.BlugeFilepath == "" {
		return fmt.Errorf("BLUGE_FILEPATH is not set")
	}
	index, err := repositories.OpenSearchIndex(config.BlugeFilepath, logs.GetLoggerFromString(config.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer index.Close()

	hits, err := index.Search(context.Background(), query, limit)
	if err != nil {
		return err
	}
	renderHits(out, hits)
	return nil
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderEvents(out io.Writer, events []event.Event) {
	table := newTable(out, []string{"At", "Participant", "Kind", "Text", "Original"})
	for _, ev := range events {
		original := ""
		if o, ok := ev.Original(); ok {
			original = o.Data
		}
		table.Append([]string{ev.At.Format(time.TimeOnly), string(ev.Participant), ev.Kind.String(), ev.Data, original})
	}
	table.Render()
}

func renderHits(out io.Writer, hits []contract.SearchHit) {
	table := newTable(out, []string{"Score", "At", "Participant", "Kind", "Text"})
	for _, hit := range hits {
		table.Append([]string{
			strconv.FormatFloat(hit.Score, 'f', 3, 64),
			hit.At.Format(time.TimeOnly),
			string(hit.Participant),
			hit.Kind,
			hit.Text,
		})
	}
	table.Render()
}
