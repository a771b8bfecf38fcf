package answer

import (
	"fmt"
	"html"
	"strconv"
	"unicode/utf8"

	"jawabbot/pkg/corpus"
)

// InlineKind discriminates the two inline result shapes.
type InlineKind int

const (
	InlineArticle InlineKind = iota
	InlinePhoto
)

func (k InlineKind) String() string {
	if k == InlinePhoto {
		return "photo"
	}

	return "article"
}

// InlineResult is one previewable item of an inline answer batch.
//
// Photo items use PhotoURL and Caption; article items use Title and Body.
// Description mirrors the caption or body for the result list preview.
type InlineResult struct {
	Kind        InlineKind `json:"kind"`
	ID          string     `json:"id"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	Caption     string     `json:"caption,omitempty"`
	Title       string     `json:"title,omitempty"`
	Body        string     `json:"body,omitempty"`
	Description string     `json:"description,omitempty"`
}

// BuildInlineResults renders one item per record using its first answer. Records whose
// rendered text exceeds maxTextLength runes are dropped rather than truncated. IDs are
// the 1-based position of the record in result, so dropped records leave gaps.
func BuildInlineResults(result corpus.Result, queryText string, maxTextLength int) []InlineResult {
	if maxTextLength <= 0 {
		maxTextLength = DefaultCaptionLimit
	}

	escapedQuery := html.EscapeString(queryText)
	items := make([]InlineResult, 0, len(result))

	for i, record := range result {
		if len(record.Answers) == 0 {
			continue
		}

		combined := inlineText(record)
		if utf8.RuneCountInString(combined) > maxTextLength {
			continue
		}

		id := strconv.Itoa(i + 1)
		if len(record.Attachments) > 0 {
			items = append(items, InlineResult{
				Kind:        InlinePhoto,
				ID:          id,
				PhotoURL:    record.Attachments[0].URL,
				Caption:     combined,
				Description: combined,
			})
			continue
		}

		items = append(items, InlineResult{
			Kind:        InlineArticle,
			ID:          id,
			Title:       fmt.Sprintf("Jawaban %d untuk: %s", i+1, escapedQuery),
			Body:        combined,
			Description: combined,
		})
	}

	return items
}

// inlineText renders the question and first answer as HTML, repeating the question line
// after the answer.
func inlineText(record corpus.QuestionRecord) string {
	questionLine := "<b>Pertanyaan:</b> " + html.EscapeString(record.Content) + "\n"
	body := questionLine + "<b>Jawaban:</b> " + html.EscapeString(record.Answers[0].Content) + "\n"

	return CollapseBlankLines(body) + questionLine
}
