package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"jawabbot/pkg/answer"
	"jawabbot/pkg/bus"
	"jawabbot/pkg/channel"
	"jawabbot/pkg/config"
	"jawabbot/pkg/corpus"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeCorpus struct {
	mu      sync.Mutex
	result  corpus.Result
	err     error
	queries []string
}

func (c *fakeCorpus) Search(_ context.Context, query string, _ int) (corpus.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *fakeCorpus) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func waterResult() corpus.Result {
	return corpus.Result{{
		Content:     "Apa itu air?",
		Attachments: []corpus.MediaRef{{URL: "https://img.example/air.png"}},
		Answers:     []corpus.AnswerRecord{{Content: "Air adalah H2O"}},
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, client corpus.Client, port int, adapters ...channel.Adapter) *Service {
	t.Helper()

	pipeline, err := answer.NewPipeline(client, answer.NewSelector(rand.NewPCG(3, 4)), answer.Options{}, discardLogger())
	require.NoError(t, err)

	cfg := &config.Config{Gateway: config.GatewayConfig{Host: "127.0.0.1", Port: port}}
	svc, err := NewService(cfg, pipeline, adapters, discardLogger())
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidates(t *testing.T) {
	pipeline, err := answer.NewPipeline(&fakeCorpus{}, nil, answer.Options{}, nil)
	require.NoError(t, err)
	adapter := &scriptedAdapter{name: "telegram", done: make(chan struct{})}

	_, err = NewService(nil, pipeline, []channel.Adapter{adapter}, nil)
	require.Error(t, err)

	_, err = NewService(&config.Config{}, nil, []channel.Adapter{adapter}, nil)
	require.Error(t, err)

	_, err = NewService(&config.Config{}, pipeline, nil, nil)
	require.Error(t, err)
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {}}}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}

	svc.channelStates["telegram"] = channelState{Running: true}
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and no corpus error")
	}

	svc.corpusLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready when the last lookup failed")
	}
}

func TestRecordLookup(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	svc.recordLookup(answer.KindLookup, "timeout")
	if svc.corpusLastErr != "timeout" {
		t.Fatalf("corpusLastErr = %q, want timeout", svc.corpusLastErr)
	}

	svc.recordLookup(answer.KindCanceled, "context canceled")
	if svc.corpusLastErr != "timeout" {
		t.Fatal("cancellation must not change corpus health")
	}

	svc.recordLookup(answer.KindNoResults, "no usable results")
	if svc.corpusLastErr != "" || svc.corpusLastOKAt.IsZero() {
		t.Fatal("a reachable corpus with no results is still healthy")
	}
}

func TestHandleInboundReply(t *testing.T) {
	svc := newTestService(t, &fakeCorpus{result: waterResult()}, 0, &scriptedAdapter{name: "telegram", done: make(chan struct{})})

	outbound, err := svc.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Mode:    bus.ModeReply,
		ChatID:  "42",
		Content: "air",
	})
	require.NoError(t, err)
	require.False(t, outbound.Failed())
	require.Equal(t, "42", outbound.ChatID)
	require.Equal(t, "1", outbound.Metadata["request_id"])
	require.Len(t, outbound.Payloads, 2)
	require.Equal(t, "Pertanyaan: Apa itu air?\n\nJawaban 1:\nAir adalah H2O", outbound.Payloads[0].Text)
	require.Empty(t, outbound.InlineResults)
}

func TestHandleInboundReplyLogsAnswerPreview(t *testing.T) {
	var logs bytes.Buffer
	debugLogger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pipeline, err := answer.NewPipeline(&fakeCorpus{result: waterResult()}, answer.NewSelector(rand.NewPCG(3, 4)), answer.Options{}, discardLogger())
	require.NoError(t, err)
	svc, err := NewService(&config.Config{}, pipeline, []channel.Adapter{&scriptedAdapter{name: "telegram", done: make(chan struct{})}}, debugLogger)
	require.NoError(t, err)

	_, err = svc.handleInbound(context.Background(), bus.InboundMessage{Channel: "telegram", Mode: bus.ModeReply, ChatID: "42", Content: "air"})
	require.NoError(t, err)

	require.Contains(t, logs.String(), `"msg":"Query answered"`)
	require.Contains(t, logs.String(), `"answer":"Pertanyaan: Apa itu air? Jawaban 1: Air adalah H2O"`)
}

func TestHandleInboundInline(t *testing.T) {
	svc := newTestService(t, &fakeCorpus{result: waterResult()}, 0, &scriptedAdapter{name: "telegram", done: make(chan struct{})})

	outbound, err := svc.handleInbound(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		Mode:    bus.ModeInline,
		Content: "air",
	})
	require.NoError(t, err)
	require.Len(t, outbound.InlineResults, 1)
	require.Equal(t, answer.InlinePhoto, outbound.InlineResults[0].Kind)
	require.Empty(t, outbound.Payloads)
}

func TestHandleInboundClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		client   *fakeCorpus
		mode     bus.Mode
		wantKind string
	}{
		{
			name:     "lookup failure",
			client:   &fakeCorpus{err: errors.New("connection refused")},
			mode:     bus.ModeReply,
			wantKind: answer.KindLookup,
		},
		{
			name:     "unanswered records",
			client:   &fakeCorpus{result: corpus.Result{{Content: "q"}}},
			mode:     bus.ModeReply,
			wantKind: answer.KindNoResults,
		},
		{
			name:     "inline lookup failure",
			client:   &fakeCorpus{err: errors.New("HTTP 502")},
			mode:     bus.ModeInline,
			wantKind: answer.KindLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.client, 0, &scriptedAdapter{name: "telegram", done: make(chan struct{})})

			outbound, err := svc.handleInbound(context.Background(), bus.InboundMessage{
				Channel: "telegram",
				Mode:    tt.mode,
				Content: "air",
			})
			require.Error(t, err)
			require.True(t, outbound.Failed())
			require.Equal(t, tt.wantKind, outbound.ErrorKind)
			require.Empty(t, outbound.Payloads)
			require.Empty(t, outbound.InlineResults)
		})
	}
}

func TestHandleInboundPublishesEvents(t *testing.T) {
	svc := newTestService(t, &fakeCorpus{result: waterResult()}, 0, &scriptedAdapter{name: "telegram", done: make(chan struct{})})
	t.Cleanup(svc.bus.Close)

	events, unsubscribe := svc.bus.SubscribeEvents(context.Background(), 8)
	defer unsubscribe()

	_, err := svc.handleInbound(context.Background(), bus.InboundMessage{Channel: "telegram", Mode: bus.ModeReply, Content: "air"})
	require.NoError(t, err)

	var got []bus.EventType
	for len(got) < 2 {
		select {
		case event := <-events:
			got = append(got, event.Type)
			require.Equal(t, "1", event.RequestID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	require.Equal(t, []bus.EventType{bus.EventQueryReceived, bus.EventAnswerComposed}, got)
}

func TestStatusEndpointsWithoutRun(t *testing.T) {
	svc := newTestService(t, &fakeCorpus{}, 0, &scriptedAdapter{name: "telegram", done: make(chan struct{})})

	recorder := httptest.NewRecorder()
	svc.handleReady(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"status":"not_ready"`)

	recorder = httptest.NewRecorder()
	svc.handleHealth(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"requests":{}`)
}
