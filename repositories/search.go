package repositories

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"

	"github.com/blugelabs/bluge"
)

const (
	fieldID          = "_id"
	fieldParticipant = "participant"
	fieldKind        = "kind"
	fieldText        = "text"
	fieldAt          = "at"
)

// SearchIndex is a full-text index of the relayed messages backed by bluge.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

var _ contract.ISearchIndex = (*SearchIndex)(nil)

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

// OpenSearchIndex opens the index stored at path, or an in-memory one when path is empty.
func OpenSearchIndex(path string, log *slog.Logger) (*SearchIndex, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if path != "" {
		cfg = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, err
	}
	return NewSearchIndex(writer, log), nil
}

// Index adds or replaces the document of an event, keyed by the event id.
func (s *SearchIndex) Index(ev event.Event) error {
	doc := bluge.NewDocument(ev.ID.String()).
		AddField(bluge.NewKeywordField(fieldParticipant, string(ev.Participant)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldKind, ev.Kind.String()).StoreValue()).
		AddField(bluge.NewTextField(fieldText, ev.Data).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, ev.At).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search returns the best limit hits matching the text query, best score first.
func (s *SearchIndex) Search(ctx context.Context, query string, limit int) ([]contract.SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("Failed to close search reader", "error", err)
		}
	}()

	request := bluge.NewTopNSearch(limit, bluge.NewMatchQuery(query).SetField(fieldText)).
		SortBy([]string{"-_score"})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []contract.SearchHit
	match, err := matches.Next()
	for err == nil && match != nil {
		hit := contract.SearchHit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				hit.ID = string(value)
			case fieldParticipant:
				hit.Participant = event.ParticipantID(value)
			case fieldKind:
				hit.Kind = string(value)
			case fieldText:
				hit.Text = string(value)
			case fieldAt:
				if at, decodeErr := bluge.DecodeDateTime(value); decodeErr == nil {
					hit.At = at.UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *SearchIndex) Close() error {
	return s.writer.Close()
}

