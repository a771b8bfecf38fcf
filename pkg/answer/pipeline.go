package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"jawabbot/pkg/corpus"
)

const (
	defaultReplyLimit  = 50
	defaultInlineLimit = 20
)

// Options bounds corpus lookups and outbound text.
type Options struct {
	ReplyLimit   int
	InlineLimit  int
	CaptionLimit int
}

func (o Options) withDefaults() Options {
	if o.ReplyLimit <= 0 {
		o.ReplyLimit = defaultReplyLimit
	}
	if o.InlineLimit <= 0 {
		o.InlineLimit = defaultInlineLimit
	}
	if o.CaptionLimit <= 0 {
		o.CaptionLimit = DefaultCaptionLimit
	}

	return o
}

// Reply is the outcome of one conversational request.
type Reply struct {
	Question string
	Payloads []Payload
}

// Text returns the primary payload text, or "" when nothing was composed.
func (r Reply) Text() string {
	if len(r.Payloads) == 0 {
		return ""
	}

	return r.Payloads[0].Text
}

// Pipeline runs corpus lookup, selection and formatting for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	corpus   corpus.Client
	selector *Selector
	opts     Options
	log      *slog.Logger
}

// NewPipeline wires a corpus client and selector into a pipeline.
func NewPipeline(client corpus.Client, selector *Selector, opts Options, log *slog.Logger) (*Pipeline, error) {
	if client == nil {
		return nil, errors.New("corpus client is required")
	}
	if selector == nil {
		selector = NewSelector(nil)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		corpus:   client,
		selector: selector,
		opts:     opts.withDefaults(),
		log:      log.With("component", "answer.pipeline"),
	}, nil
}

// Options returns the effective limits.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Reply looks up query, picks one answered record and composes its payloads.
// On error no payloads are returned.
func (p *Pipeline) Reply(ctx context.Context, query string) (Reply, error) {
	result, err := p.corpus.Search(ctx, query, p.opts.ReplyLimit)
	if err != nil {
		return Reply{}, asLookupError(query, err)
	}

	record, err := p.selector.Select(result)
	if err != nil {
		return Reply{}, err
	}

	payloads, err := Compose(record, p.opts.CaptionLimit)
	if err != nil {
		return Reply{Question: record.Content}, err
	}

	p.log.Debug("Composed reply", "records", len(result), "payloads", len(payloads))

	return Reply{Question: record.Content, Payloads: payloads}, nil
}

// Inline looks up query and builds the inline result batch. A blank query returns no
// results without a lookup. On lookup failure the returned list is empty and err is set.
func (p *Pipeline) Inline(ctx context.Context, query string) ([]InlineResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	result, err := p.corpus.Search(ctx, query, p.opts.InlineLimit)
	if err != nil {
		return []InlineResult{}, asLookupError(query, err)
	}

	items := BuildInlineResults(result, query, p.opts.CaptionLimit)
	p.log.Debug("Built inline results", "records", len(result), "items", len(items))

	return items, nil
}

func asLookupError(query string, err error) error {
	var lookupErr *corpus.LookupError
	if errors.As(err, &lookupErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return corpus.NewLookupError(query, err)
}
