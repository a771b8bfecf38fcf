package bus

import "jawabbot/pkg/answer"

// Mode selects how a channel wants a query answered.
type Mode string

const (
	// ModeReply answers in the originating chat with one or more messages.
	ModeReply Mode = "reply"
	// ModeInline answers a type-ahead inline query with a result list.
	ModeInline Mode = "inline"
)

// InboundMessage is one query received by a channel adapter.
type InboundMessage struct {
	Channel  string            `json:"channel"`
	Mode     Mode              `json:"mode"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id,omitempty"`
	ChatType string            `json:"chat_type,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the typed result of handling one inbound query.
//
// Reply requests fill Payloads, inline requests fill InlineResults. On failure both are
// empty and ErrorKind carries the stable category used by adapters to pick a fallback.
type OutboundMessage struct {
	Channel       string                `json:"channel"`
	Mode          Mode                  `json:"mode"`
	ChatID        string                `json:"chat_id,omitempty"`
	Payloads      []answer.Payload      `json:"payloads,omitempty"`
	InlineResults []answer.InlineResult `json:"inline_results,omitempty"`
	Error         string                `json:"error,omitempty"`
	ErrorKind     string                `json:"error_kind,omitempty"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
}

// Failed reports whether the request produced an error.
func (m OutboundMessage) Failed() bool {
	return m.ErrorKind != "" || m.Error != ""
}
