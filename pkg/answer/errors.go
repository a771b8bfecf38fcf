package answer

import (
	"context"
	"errors"

	"jawabbot/pkg/corpus"
)

var (
	// ErrNoUsableResults means the corpus answered but no record had an answer.
	ErrNoUsableResults = errors.New("no usable results")
	// ErrEmptyAnswerSet means Compose was handed a record without answers.
	ErrEmptyAnswerSet = errors.New("record has no answers")
)

// Stable error categories used in logs, events and outbound messages.
const (
	KindLookup       = "lookup"
	KindNoResults    = "no_results"
	KindEmptyAnswers = "empty_answers"
	KindCanceled     = "canceled"
	KindInternal     = "internal"
)

// ErrorKind returns the stable category for a pipeline error, or "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	var lookupErr *corpus.LookupError
	if errors.As(err, &lookupErr) {
		return KindLookup
	}
	if errors.Is(err, ErrNoUsableResults) {
		return KindNoResults
	}
	if errors.Is(err, ErrEmptyAnswerSet) {
		return KindEmptyAnswers
	}

	return KindInternal
}
