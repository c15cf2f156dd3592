package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"rankview/core"
)

// Service bundles the metrics collector with periodic export and an HTTP view.
type Service struct {
	metrics  *Metrics
	extra    []Hook
	bridge   *BridgeHook
	exporter Exporter
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithExporter enables periodic export every interval.
func WithExporter(e Exporter, interval time.Duration) Option {
	return func(s *Service) {
		s.exporter = e
		s.interval = interval
	}
}

// WithHooks forwards every event to additional hooks after the collector.
func WithHooks(hooks ...Hook) Option {
	return func(s *Service) { s.extra = append(s.extra, hooks...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{metrics: NewMetrics(), logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.bridge = NewBridge(append([]Hook{s.metrics}, s.extra...)...)
	return s
}

// Hook returns the collector and any extra hooks as a single Hook.
func (s *Service) Hook() Hook { return s.bridge }

// OnEvent adapts Hook to engine.Service.SubscribeAll.
func (s *Service) OnEvent(_ context.Context, e core.Event) { s.bridge.OnEvent(e) }

// Stats returns the current counters with the five most frequent failures.
func (s *Service) Stats() Stats { return s.metrics.Snapshot(5) }

// Start exports a snapshot on every tick until ctx is done, then exports a
// final one and closes the exporter. Without an exporter it returns at once.
func (s *Service) Start(ctx context.Context) {
	if s.exporter == nil || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.export(flushCtx)
			cancel()
			if err := s.exporter.Close(); err != nil {
				s.logger.Warn("analytics exporter close failed", "error", err)
			}
			return
		case <-ticker.C:
			s.export(ctx)
		}
	}
}

func (s *Service) export(ctx context.Context) {
	if err := s.exporter.Export(ctx, s.Stats()); err != nil {
		s.logger.Warn("analytics export failed", "error", err)
	}
}

// Handler serves the stats as JSON. ?top=N changes the failure ranking size
// and DELETE resets the counters.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			top := 5
			if v := r.URL.Query().Get("top"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					http.Error(w, `{"error":"top must be a non-negative integer"}`, http.StatusBadRequest)
					return
				}
				top = n
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(s.metrics.Snapshot(top))
		case http.MethodDelete:
			s.metrics.Reset()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}
