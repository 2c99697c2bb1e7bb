package event

type Kind int

const (
	IDSet Kind = iota + 1
	Waiting
	Connected
	Typing
	StoppedTyping
	GotMessage
	Disconnected
	Timeout
	MessageModified
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{IDSet, Waiting, Connected, Typing, StoppedTyping, GotMessage, Disconnected, Timeout, MessageModified}

var kindTags = map[Kind]string{
	IDSet:           "idSet",
	Waiting:         "waiting",
	Connected:       "connected",
	Typing:          "typing",
	StoppedTyping:   "stoppedTyping",
	GotMessage:      "gotMessage",
	Disconnected:    "strangerDisconnected",
	Timeout:         "connectionTimeout",
	MessageModified: "messageModified",
}

// remote tags accepted on top of the canonical ones
var aliases = map[string]Kind{
	"disconnected": Disconnected,
	"timeout":      Timeout,
}

func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "unknown"
}

// ParseKind maps a remote protocol tag to a Kind.
func ParseKind(tag string) (Kind, bool) {
	for kind, t := range kindTags {
		if t == tag {
			return kind, true
		}
	}
	kind, ok := aliases[tag]
	return kind, ok
}
