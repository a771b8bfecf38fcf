package corpus

import (
	"context"
	"fmt"
)

// MediaRef points at one image attached to a question or an answer.
type MediaRef struct {
	URL string `json:"url"`
}

// AnswerRecord is one answer body scraped from the corpus.
type AnswerRecord struct {
	Content     string     `json:"content"`
	Attachments []MediaRef `json:"attachments,omitempty"`
}

// QuestionRecord is one question with its answers, in corpus order.
type QuestionRecord struct {
	Content     string         `json:"content"`
	Attachments []MediaRef     `json:"attachments,omitempty"`
	Answers     []AnswerRecord `json:"answers"`
}

// Result is the full, ordered record set for one query.
type Result []QuestionRecord

// Client looks up question/answer records for a free-text query.
type Client interface {
	Search(ctx context.Context, query string, limit int) (Result, error)
}

// LookupError reports a failed corpus fetch for one query.
type LookupError struct {
	Query string
	Err   error
}

func (e *LookupError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("corpus lookup %q failed", e.Query)
	}

	return fmt.Sprintf("corpus lookup %q: %v", e.Query, e.Err)
}

func (e *LookupError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// NewLookupError wraps err as a lookup failure for query.
func NewLookupError(query string, err error) error {
	return &LookupError{Query: query, Err: err}
}
