package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"rankview/core"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Rankview-Signature"

// Sink posts view-state events to configured HTTP endpoints. Events are queued
// and delivered by a single worker so publishers never wait on the network;
// when the queue is full the event is dropped and counted.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]bool
	secret    []byte
	logger    *slog.Logger

	queue     chan core.Event
	queueSize int
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEventTypes restricts delivery to the listed event types.
func WithEventTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// WithSecret signs each body with HMAC-SHA256 in SignatureHeader.
func WithSecret(secret string) Option {
	return func(s *Sink) { s.secret = []byte(secret) }
}

// WithQueueSize sets the delivery backlog (defaults to 256).
func WithQueueSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink and starts its delivery worker.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client:    &http.Client{Timeout: 2 * time.Second},
		types:     map[core.EventType]bool{},
		logger:    slog.Default(),
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	s.queue = make(chan core.Event, s.queueSize)
	s.wg.Add(1)
	go s.run()
	return s
}

// Wants reports whether the sink forwards events of type t.
func (s *Sink) Wants(t core.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// OnEvent queues e for delivery. It matches engine.Service.SubscribeAll.
func (s *Sink) OnEvent(_ context.Context, e core.Event) {
	if len(s.endpoints) == 0 || !s.Wants(e.Type) {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
		s.logger.Warn("webhook queue full, dropping event", "type", e.Type)
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for e := range s.queue {
		_ = s.Deliver(context.Background(), e)
	}
}

// Deliver posts e to every endpoint synchronously and returns the last error.
func (s *Sink) Deliver(ctx context.Context, e core.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	var lastErr error
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.failed.Add(1)
			s.logger.Warn("webhook delivery failed", "endpoint", ep, "type", e.Type, "error", err)
			lastErr = err
			continue
		}
		s.delivered.Add(1)
	}
	return lastErr
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(s.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(s.secret, body))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Close stops accepting events and waits for queued deliveries to finish.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// Delivered, Failed and Dropped report delivery counters.
func (s *Sink) Delivered() int64 { return s.delivered.Load() }
func (s *Sink) Failed() int64    { return s.failed.Load() }
func (s *Sink) Dropped() int64   { return s.dropped.Load() }
