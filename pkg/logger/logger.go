// Package logger builds the bot's slog logger.
//
// Operators read the text form in a terminal; log shippers get one JSON object per line.
// Request-scoped keys (component, request_id, channel) are lifted out of the field bag so
// a single request can be followed across the gateway, the pipeline and the adapter.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	charmLog "github.com/charmbracelet/log"

	"jawabbot/pkg/config"
)

// PreviewLimit bounds question and answer text copied into log fields.
const PreviewLimit = 240

const (
	envFormat    = "JAWABBOT_LOG_FORMAT"
	envLevel     = "JAWABBOT_LOG_LEVEL"
	envAddSource = "JAWABBOT_LOG_ADD_SOURCE"
)

// Entry is one JSON log line.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Msg       string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
	Source    string         `json:"source,omitempty"`
}

type settings struct {
	asJSON    bool
	level     slog.Level
	addSource bool
}

// New returns a logger writing to stderr. JAWABBOT_LOG_* variables win over cfg.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	if s.asJSON {
		return slog.New(&jsonHandler{settings: s, out: &lockedWriter{w: w}}), nil
	}

	text := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           toCharm(s.level),
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		ReportCaller:    s.addSource,
	})
	return slog.New(text), nil
}

func resolve(cfg config.LoggingConfig) (settings, error) {
	format := envOr(envFormat, cfg.Format)
	if format == "" {
		format = "text"
	}

	var s settings
	switch format {
	case "text":
	case "json":
		s.asJSON = true
	default:
		return settings{}, fmt.Errorf("unsupported log format %q", format)
	}

	levelName := envOr(envLevel, cfg.Level)
	if levelName == "warning" {
		levelName = "warn"
	}
	if levelName == "" {
		levelName = "info"
	}
	if err := s.level.UnmarshalText([]byte(levelName)); err != nil {
		return settings{}, fmt.Errorf("unsupported log level %q", levelName)
	}

	s.addSource = cfg.AddSource
	if raw := strings.TrimSpace(os.Getenv(envAddSource)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return settings{}, fmt.Errorf("parse %s: %w", envAddSource, err)
		}
		s.addSource = enabled
	}

	return s, nil
}

// envOr returns the lowercased environment value for key, or fallback when it is unset.
func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return strings.ToLower(value)
	}

	return strings.ToLower(strings.TrimSpace(fallback))
}

func toCharm(level slog.Level) charmLog.Level {
	switch {
	case level < slog.LevelInfo:
		return charmLog.DebugLevel
	case level < slog.LevelWarn:
		return charmLog.InfoLevel
	case level < slog.LevelError:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) writeLine(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.w.Write(append(line, '\n'))
	return err
}

type jsonHandler struct {
	settings
	out    *lockedWriter
	preset []slog.Attr
	prefix string
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonHandler) Handle(_ context.Context, record slog.Record) error {
	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	entry := Entry{
		Time:  when.UTC().Format(time.RFC3339Nano),
		Level: strings.ToLower(record.Level.String()),
		Msg:   record.Message,
	}

	fields := map[string]any{}
	for _, attr := range h.preset {
		entry.put(fields, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		entry.put(fields, h.prefix, attr)
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}

	if h.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		if frame.File != "" {
			entry.Source = filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return h.out.writeLine(line)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append([]slog.Attr{}, h.preset...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		next.preset = append(next.preset, attr)
	}
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// put lifts request-scoped string keys onto the entry and files everything else under fields.
func (e *Entry) put(fields map[string]any, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if prefix == "" && attr.Value.Kind() == slog.KindString {
		switch attr.Key {
		case "component":
			e.Component = attr.Value.String()
			return
		case "request_id":
			e.RequestID = attr.Value.String()
			return
		case "channel":
			e.Channel = attr.Value.String()
			return
		}
	}

	fields[prefix+attr.Key] = plain(attr.Value)
}

// plain converts a slog value into something encoding/json renders readably.
func plain(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := make(map[string]any, len(value.Group()))
		for _, item := range value.Group() {
			group[item.Key] = plain(item.Value.Resolve())
		}
		return group
	case slog.KindAny:
		switch typed := value.Any().(type) {
		case error:
			return typed.Error()
		case fmt.Stringer:
			return typed.String()
		default:
			return typed
		}
	default:
		return value.Any()
	}
}

// Preview flattens whitespace and caps text at PreviewLimit runes for log fields.
func Preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(flat) <= PreviewLimit {
		return flat
	}

	return string([]rune(flat)[:PreviewLimit]) + "..."
}
