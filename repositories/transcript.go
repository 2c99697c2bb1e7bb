package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	transcriptPrefix = "transcript:"
	timelinePrefix   = "timeline:"
)

type TranscriptRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ contract.ITranscriptRepository = TranscriptRepository{}

func NewTranscriptRepository(db *badger.DB, log *slog.Logger) TranscriptRepository {
	return TranscriptRepository{db: db, log: log}
}

// Store persists an event twice in one transaction:
//   - "transcript:{participant}:{timestamp_padded}:{uuid}" for per-participant reads,
//   - "timeline:{timestamp_padded}:{uuid}" for chronological reads across participants.
//
// The 19-digit zero padding keeps the lexicographical order chronological and the UUID
// prevents collisions between events sharing the same nanosecond.
func (r TranscriptRepository) Store(ev event.Event) error {
	bytes, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(transcriptKey(ev), bytes); err != nil {
			return err
		}
		return txn.Set(timelineKey(ev.At, ev.ID.String()), bytes)
	})
}

// Transcript returns every stored event of a participant, oldest first.
func (r TranscriptRepository) Transcript(participant event.ParticipantID) ([]event.Event, error) {
	prefix := participantPrefix(participant)
	return r.scan(prefix, prefix, 0)
}

// Since returns up to limit events stored at or after since, oldest first.
// A limit of zero or less means no limit.
func (r TranscriptRepository) Since(since time.Time, limit int) ([]event.Event, error) {
	return r.scan([]byte(timelinePrefix), timelineKey(since, ""), limit)
}

func (r TranscriptRepository) scan(prefix, seek []byte, limit int) ([]event.Event, error) {
	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d events reached", limit))
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(values))
	for _, value := range values {
		ev, err := unmarshalEvent(value)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// participantPrefix length-prefixes the participant since ids may themselves contain
// colons, so that one id is never a key prefix of another.
func participantPrefix(participant event.ParticipantID) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", transcriptPrefix, len(participant), participant))
}

func transcriptKey(ev event.Event) []byte {
	return fmt.Appendf(participantPrefix(ev.Participant), "%019d:%s", ev.At.UnixNano(), ev.ID)
}

func timelineKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", timelinePrefix, at.UnixNano(), id))
}

func marshalEvent(ev event.Event) ([]byte, error) {
	fields := eventFields(ev)
	if original, ok := ev.Original(); ok {
		fields["original"] = eventFields(original)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func eventFields(ev event.Event) map[string]any {
	return map[string]any{
		"id":          ev.ID.String(),
		"participant": string(ev.Participant),
		"kind":        ev.Kind.String(),
		"data":        ev.Data,
		"at":          ev.At.UTC().Format(time.RFC3339Nano),
	}
}

func unmarshalEvent(b []byte) (event.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return event.Event{}, err
	}
	ev, err := toEvent(s.GetFields())
	if err != nil {
		return event.Event{}, err
	}
	if original := s.GetFields()["original"].GetStructValue(); original != nil {
		o, err := toEvent(original.GetFields())
		if err != nil {
			return event.Event{}, err
		}
		ev = ev.WithOriginal(o)
	}
	return ev, nil
}

func toEvent(fields map[string]*structpb.Value) (event.Event, error) {
	id, err := uuid.Parse(fields["id"].GetStringValue())
	if err != nil {
		return event.Event{}, err
	}
	kind, ok := event.ParseKind(fields["kind"].GetStringValue())
	if !ok {
		return event.Event{}, fmt.Errorf("%w: %q", errors.ErrUnknownKind, fields["kind"].GetStringValue())
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ID:          id,
		Participant: event.ParticipantID(fields["participant"].GetStringValue()),
		Kind:        kind,
		Data:        fields["data"].GetStringValue(),
		At:          at,
	}, nil
}
