package remote

import (
	"bytes"
	"fmt"
	"strings"

	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/tidwall/gjson"
)

// remoteKinds are the tags the remote service may send in an events page.
var remoteKinds = map[string]event.Kind{
	"waiting":              event.Waiting,
	"connected":            event.Connected,
	"typing":               event.Typing,
	"stoppedTyping":        event.StoppedTyping,
	"gotMessage":           event.GotMessage,
	"strangerDisconnected": event.Disconnected,
}

// ParseID reads the participant id returned by the start action, a quoted string.
func ParseID(body []byte) (event.ParticipantID, error) {
	raw := bytes.TrimSpace(body)
	var id string
	if gjson.ValidBytes(raw) {
		result := gjson.ParseBytes(raw)
		if result.Type != gjson.String {
			return "", fmt.Errorf("%w: start returned %s", errors.ErrMalformedPayload, result.Type)
		}
		id = result.String()
	} else {
		id = strings.ReplaceAll(string(raw), `"`, "")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.ErrEmptyID
	}
	return event.ParticipantID(id), nil
}

// ParseEvents turns an events page, a JSON array of [tag, data?] tuples, into events
// tagged with participant, in the order the remote listed them.
// An empty or null page yields no events. Unknown tags are skipped.
func ParseEvents(participant event.ParticipantID, body []byte) ([]event.Event, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", errors.ErrMalformedPayload)
	}

	page := gjson.ParseBytes(raw)
	switch {
	case page.Type == gjson.Null:
		return nil, nil
	case !page.IsArray():
		return nil, fmt.Errorf("%w: expected an array, got %s", errors.ErrMalformedPayload, page.Type)
	}

	var events []event.Event
	for i, tuple := range page.Array() {
		fields := tuple.Array()
		if !tuple.IsArray() || len(fields) == 0 || fields[0].Type != gjson.String {
			return nil, fmt.Errorf("%w: entry %d is not a tagged tuple", errors.ErrMalformedPayload, i)
		}
		kind, ok := remoteKinds[fields[0].String()]
		if !ok {
			continue
		}
		var data string
		if len(fields) > 1 {
			data = fields[1].String()
		}
		events = append(events, event.New(participant, kind, data))
	}
	return events, nil
}
