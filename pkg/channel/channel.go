package channel

import (
	"context"

	"jawabbot/pkg/bus"
)

// Handler answers one inbound query and returns a typed outbound result.
//
// A non-nil error comes with an OutboundMessage whose ErrorKind is set; the adapter
// decides whether the user sees a fallback.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external chat transport (for example Telegram) into the pipeline.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
