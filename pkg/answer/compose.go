package answer

import (
	"strconv"
	"strings"

	"jawabbot/pkg/corpus"
)

// MarkupMode tells the transport how to parse payload text.
type MarkupMode int

const (
	MarkupPlain MarkupMode = iota
	MarkupRich
)

func (m MarkupMode) String() string {
	switch m {
	case MarkupRich:
		return "rich"
	default:
		return "plain"
	}
}

// Payload is one outbound message: text alone, or a photo captioned with text.
type Payload struct {
	Text     string     `json:"text"`
	MediaURL string     `json:"media_url,omitempty"`
	Mode     MarkupMode `json:"mode"`
}

// HasMedia reports whether the payload is a photo.
func (p Payload) HasMedia() bool {
	return strings.TrimSpace(p.MediaURL) != ""
}

// Compose renders a record into the primary text payload followed by one photo payload
// per question attachment and per answer attachment.
//
// Every photo reuses the full composed text as its caption, answer photos included.
func Compose(record corpus.QuestionRecord, capLength int) ([]Payload, error) {
	if len(record.Answers) == 0 {
		return nil, ErrEmptyAnswerSet
	}

	text := Sanitize(composeText(record), capLength)

	payloads := make([]Payload, 0, 1+attachmentCount(record))
	payloads = append(payloads, Payload{Text: text, Mode: MarkupRich})

	for _, attachment := range record.Attachments {
		payloads = append(payloads, Payload{Text: text, MediaURL: attachment.URL, Mode: MarkupRich})
	}

	for _, answer := range record.Answers {
		for _, attachment := range answer.Attachments {
			payloads = append(payloads, Payload{Text: text, MediaURL: attachment.URL, Mode: MarkupRich})
		}
	}

	return payloads, nil
}

func composeText(record corpus.QuestionRecord) string {
	var b strings.Builder
	b.WriteString("Pertanyaan: ")
	b.WriteString(record.Content)
	for i, answer := range record.Answers {
		b.WriteString("\n\nJawaban ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(answer.Content)
	}

	return b.String()
}

func attachmentCount(record corpus.QuestionRecord) int {
	count := len(record.Attachments)
	for _, answer := range record.Answers {
		count += len(answer.Attachments)
	}

	return count
}
