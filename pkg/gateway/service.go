package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jawabbot/pkg/answer"
	"jawabbot/pkg/bus"
	"jawabbot/pkg/channel"
	"jawabbot/pkg/config"
	"jawabbot/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790
	eventBufferSize   = 256
)

// Service runs channel adapters against the answer pipeline and serves status endpoints.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	pipeline *answer.Pipeline
	channels []channel.Adapter
	bus      *bus.MessageBus

	requestSeq atomic.Uint64

	mu             sync.RWMutex
	startedAt      time.Time
	corpusLastOKAt time.Time
	corpusLastErr  string
	channelStates  map[string]channelState
	requests       map[bus.EventType]int64
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status         string                  `json:"status"`
	UptimeSeconds  int64                   `json:"uptime_seconds"`
	CorpusLastOKAt string                  `json:"corpus_last_ok_at,omitempty"`
	CorpusLastErr  string                  `json:"corpus_last_error,omitempty"`
	Channels       map[string]channelState `json:"channels"`
	Requests       map[string]int64        `json:"requests"`
}

// NewService validates dependencies and prepares a service; nothing runs until Run.
func NewService(cfg *config.Config, pipeline *answer.Pipeline, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if pipeline == nil {
		return nil, errors.New("answer pipeline is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		pipeline:      pipeline,
		channels:      adapters,
		bus:           bus.NewMessageBus(),
		channelStates: channelStates,
		requests:      make(map[bus.EventType]int64),
	}, nil
}

// Run starts the status server, the event counter and every adapter. It returns nil once
// ctx is canceled, or the first adapter or server failure.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.bus.Close()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)

	events, unsubscribe := s.bus.SubscribeEvents(groupCtx, eventBufferSize)
	defer unsubscribe()
	group.Go(func() error {
		s.countEvents(events)
		return nil
	})

	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})
	}

	group.Go(func() error {
		return s.runStatusServer(groupCtx)
	})

	for _, adapter := range s.channels {
		group.Go(func() error {
			err := adapter.Run(groupCtx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	return nil
}

// handleInbound answers one inbound query in the mode the channel asked for.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	requestID := strconv.FormatUint(s.requestSeq.Add(1), 10)
	outbound := bus.OutboundMessage{
		Channel:  inbound.Channel,
		Mode:     inbound.Mode,
		ChatID:   inbound.ChatID,
		Metadata: map[string]string{"request_id": requestID},
	}

	s.publish(ctx, inbound, requestID, bus.EventQueryReceived, nil)

	if inbound.Mode == bus.ModeInline {
		items, err := s.pipeline.Inline(ctx, inbound.Content)
		if err != nil {
			return s.fail(ctx, inbound, outbound, requestID, "", err)
		}

		s.recordLookup("", "")
		outbound.InlineResults = items
		s.publish(ctx, inbound, requestID, bus.EventInlineBuilt, map[string]string{
			"results": strconv.Itoa(len(items)),
		})
		return outbound, nil
	}

	reply, err := s.pipeline.Reply(ctx, inbound.Content)
	if err != nil {
		return s.fail(ctx, inbound, outbound, requestID, reply.Question, err)
	}

	s.recordLookup("", "")
	s.log.Debug("Query answered",
		"request_id", requestID,
		"chat_id", inbound.ChatID,
		"payloads", len(reply.Payloads),
		"answer", logger.Preview(reply.Text()),
	)
	outbound.Payloads = reply.Payloads
	s.publish(ctx, inbound, requestID, bus.EventAnswerComposed, map[string]string{
		"payloads": strconv.Itoa(len(reply.Payloads)),
	})
	return outbound, nil
}

// fail logs a failed request with enough context to debug it and returns the typed result.
func (s *Service) fail(ctx context.Context, inbound bus.InboundMessage, outbound bus.OutboundMessage, requestID, partial string, err error) (bus.OutboundMessage, error) {
	kind := answer.ErrorKind(err)
	s.recordLookup(kind, err.Error())

	attrs := []any{
		"request_id", requestID,
		"channel", inbound.Channel,
		"mode", inbound.Mode,
		"chat_id", inbound.ChatID,
		"error_kind", kind,
		"query", logger.Preview(inbound.Content),
		"error", err,
	}
	if partial != "" {
		attrs = append(attrs, "partial", logger.Preview(partial))
	}

	switch kind {
	case answer.KindCanceled:
		s.log.Debug("Query canceled", attrs...)
	case answer.KindLookup, answer.KindInternal:
		s.log.Error("Query failed", attrs...)
	default:
		s.log.Warn("Query not answerable", attrs...)
	}

	outbound.Error = err.Error()
	outbound.ErrorKind = kind
	if inbound.Mode == bus.ModeInline {
		outbound.InlineResults = []answer.InlineResult{}
	}

	event := bus.Event{
		Type:      bus.EventQueryFailed,
		Channel:   inbound.Channel,
		Mode:      inbound.Mode,
		ChatID:    inbound.ChatID,
		RequestID: requestID,
		Error:     err.Error(),
		ErrorKind: kind,
	}
	s.bus.PublishEvent(context.WithoutCancel(ctx), event)

	return outbound, err
}

func (s *Service) publish(ctx context.Context, inbound bus.InboundMessage, requestID string, eventType bus.EventType, payload map[string]string) {
	s.bus.PublishEvent(context.WithoutCancel(ctx), bus.Event{
		Type:      eventType,
		Channel:   inbound.Channel,
		Mode:      inbound.Mode,
		ChatID:    inbound.ChatID,
		RequestID: requestID,
		Payload:   payload,
	})
}

// recordLookup tracks corpus health from request outcomes. Only lookup failures mark the
// corpus unhealthy; cancellations say nothing about it.
func (s *Service) recordLookup(kind, message string) {
	if kind == answer.KindCanceled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == answer.KindLookup {
		s.corpusLastErr = message
		return
	}

	s.corpusLastErr = ""
	s.corpusLastOKAt = time.Now().UTC()
}

func (s *Service) countEvents(events <-chan bus.Event) {
	for event := range events {
		s.mu.Lock()
		s.requests[event.Type]++
		s.mu.Unlock()
	}
}

func (s *Service) runStatusServer(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	<-stopped
	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	requests := make(map[string]int64, len(s.requests))
	for eventType, count := range s.requests {
		requests[string(eventType)] = count
	}

	corpusLastOK := ""
	if !s.corpusLastOKAt.IsZero() {
		corpusLastOK = s.corpusLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		CorpusLastOKAt: corpusLastOK,
		CorpusLastErr:  s.corpusLastErr,
		Channels:       channels,
		Requests:       requests,
	}
}

// isReady requires a running channel and no failure on the most recent corpus lookup.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	return anyRunning && s.corpusLastErr == ""
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
