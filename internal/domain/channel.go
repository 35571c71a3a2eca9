package domain

import (
	"fmt"
	"strings"
)

type ChannelKind uint8

const (
	ChannelData ChannelKind = iota + 1
	ChannelError
	ChannelEnd
	ChannelSummary
	ChannelFailure
	ChannelSuccess
	ChannelPageNext
	ChannelPageIsLast
	ChannelRequestTooLarge
	ChannelUnprocessableEntity
	ChannelVerb
	ChannelEvent
	ChannelProduct
	ChannelStreamType
)

type channelSpec struct {
	name    string
	dynamic bool
}

// channelRegistry is the closed set of channel kinds. Dynamic kinds take a
// label (the verb, compliance event type, product or stream type).
var channelRegistry = map[ChannelKind]channelSpec{
	ChannelData:                {name: "data"},
	ChannelError:               {name: "error"},
	ChannelEnd:                 {name: "end"},
	ChannelSummary:             {name: "summary"},
	ChannelFailure:             {name: "failure"},
	ChannelSuccess:             {name: "success"},
	ChannelPageNext:            {name: "page:next"},
	ChannelPageIsLast:          {name: "page:is_last"},
	ChannelRequestTooLarge:     {name: "request_too_large"},
	ChannelUnprocessableEntity: {name: "unprocessable_entity"},
	ChannelVerb:                {name: "verb", dynamic: true},
	ChannelEvent:               {name: "event", dynamic: true},
	ChannelProduct:             {name: "product", dynamic: true},
	ChannelStreamType:          {name: "stream_type", dynamic: true},
}

var channelKindsByName = func() map[string]ChannelKind {
	byName := make(map[string]ChannelKind, len(channelRegistry))
	for kind, spec := range channelRegistry {
		byName[spec.name] = kind
	}
	return byName
}()

func (k ChannelKind) String() string {
	if spec, ok := channelRegistry[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

func (k ChannelKind) Dynamic() bool {
	return channelRegistry[k].dynamic
}

func (k ChannelKind) Valid() bool {
	_, ok := channelRegistry[k]
	return ok
}

// Channel names where an emission goes. Label is empty for static kinds.
type Channel struct {
	Kind  ChannelKind
	Label string
}

func StaticChannel(kind ChannelKind) Channel {
	return Channel{Kind: kind}
}

func DynamicChannel(kind ChannelKind, label string) Channel {
	return Channel{Kind: kind, Label: label}
}

var (
	DataChannel       = StaticChannel(ChannelData)
	ErrorChannel      = StaticChannel(ChannelError)
	EndChannel        = StaticChannel(ChannelEnd)
	SummaryChannel    = StaticChannel(ChannelSummary)
	FailureChannel    = StaticChannel(ChannelFailure)
	SuccessChannel    = StaticChannel(ChannelSuccess)
	PageNextChannel   = StaticChannel(ChannelPageNext)
	PageIsLastChannel = StaticChannel(ChannelPageIsLast)
)

func (c Channel) String() string {
	if c.Kind.Dynamic() {
		return c.Kind.String() + ":" + c.Label
	}
	return c.Kind.String()
}

// ParseChannel reads the textual channel form used on the command line:
// "data", "page:is_last", "verb:post", "event:delete" and so on. A dynamic
// kind without a label ("verb") matches the whole kind and is returned with
// an empty label.
func ParseChannel(raw string) (Channel, error) {
	name := strings.TrimSpace(raw)
	if kind, ok := channelKindsByName[name]; ok {
		return Channel{Kind: kind}, nil
	}

	prefix, label, found := strings.Cut(name, ":")
	if !found {
		return Channel{}, fmt.Errorf("unknown channel %q", raw)
	}
	kind, ok := channelKindsByName[prefix]
	if !ok || !kind.Dynamic() {
		return Channel{}, fmt.Errorf("unknown channel %q", raw)
	}
	if label == "" {
		return Channel{}, fmt.Errorf("channel %q is missing a label", raw)
	}

	return Channel{Kind: kind, Label: label}, nil
}
