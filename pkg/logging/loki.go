package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Loki defaults.
const (
	DefaultLokiBatchSize     = 100
	DefaultLokiFlushInterval = 5 * time.Second
)

// lokiSink owns the buffered batch. Handlers derived through WithAttrs and
// WithGroup share their parent's sink so nothing is stranded in a copy.
type lokiSink struct {
	url       string
	labels    map[string]string
	client    *http.Client
	batchSize int
	interval  time.Duration

	mu     sync.Mutex
	batch  [][2]string
	timer  *time.Timer
	closed bool
}

// LokiHandler is a slog.Handler that batches records as JSON lines and
// pushes them to a Loki push endpoint.
type LokiHandler struct {
	sink   *lokiSink
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// LokiOption configures a LokiHandler.
type LokiOption func(*LokiHandler)

// WithLokiLabels adds stream labels.
func WithLokiLabels(labels map[string]string) LokiOption {
	return func(h *LokiHandler) {
		for k, v := range labels {
			h.sink.labels[k] = v
		}
	}
}

// WithLokiLevel sets the minimum level shipped to Loki.
func WithLokiLevel(level slog.Leveler) LokiOption {
	return func(h *LokiHandler) { h.level = level }
}

// WithLokiBatchSize sets how many records trigger an immediate push.
func WithLokiBatchSize(size int) LokiOption {
	return func(h *LokiHandler) {
		if size > 0 {
			h.sink.batchSize = size
		}
	}
}

// WithLokiFlushInterval sets how often buffered records are pushed.
func WithLokiFlushInterval(d time.Duration) LokiOption {
	return func(h *LokiHandler) {
		if d > 0 {
			h.sink.interval = d
		}
	}
}

// WithLokiClient replaces the HTTP client used for pushes.
func WithLokiClient(c *http.Client) LokiOption {
	return func(h *LokiHandler) { h.sink.client = c }
}

// NewLokiHandler creates a handler pushing to url, typically
// http://host:3100/loki/api/v1/push.
func NewLokiHandler(url string, opts ...LokiOption) *LokiHandler {
	h := &LokiHandler{
		sink: &lokiSink{
			url:       url,
			labels:    map[string]string{"job": "formroom"},
			client:    &http.Client{Timeout: 5 * time.Second},
			batchSize: DefaultLokiBatchSize,
			interval:  DefaultLokiFlushInterval,
		},
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(h)
	}
	s := h.sink
	s.timer = time.AfterFunc(s.interval, s.tick)
	return h
}

func (s *lokiSink) tick() {
	_ = s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.timer.Reset(s.interval)
	}
}

// Enabled implements slog.Handler.
func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	line, err := h.format(r)
	if err != nil {
		return err
	}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	s := h.sink
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.batch = append(s.batch, [2]string{strconv.FormatInt(ts.UnixNano(), 10), line})
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		go func() { _ = s.flush() }()
	}
	return nil
}

func (h *LokiHandler) format(r slog.Record) (string, error) {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
		"time":  r.Time.Format(time.RFC3339Nano),
	}
	for _, a := range h.attrs {
		addAttr(data, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(data, h.prefix, a)
		return true
	})
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode loki line: %w", err)
	}
	return string(b), nil
}

// addAttr flattens groups into dotted keys.
func addAttr(data map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(data, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	val := v.Any()
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	data[prefix+a.Key] = val
}

// WithAttrs implements slog.Handler.
func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a = slog.Group(strings.TrimSuffix(h.prefix, "."), a)
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

// WithGroup implements slog.Handler.
func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

// Flush pushes all buffered records.
func (h *LokiHandler) Flush() error {
	return h.sink.flush()
}

func (s *lokiSink) flush() error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	values := make([][]string, len(batch))
	for i, e := range batch {
		values[i] = []string{e[0], e[1]}
	}
	push := map[string]any{
		"streams": []map[string]any{{"stream": s.labels, "values": values}},
	}
	body, err := json.Marshal(push)
	if err != nil {
		return fmt.Errorf("marshal loki push: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create loki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send logs to loki: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flush timer and pushes what is left. Records handled
// after Close are dropped.
func (h *LokiHandler) Close() error {
	s := h.sink
	s.mu.Lock()
	s.closed = true
	s.timer.Stop()
	s.mu.Unlock()
	return s.flush()
}
