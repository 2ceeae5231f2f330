package daemon

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the daemon's ambient observability counters, per
// SPEC_FULL.md's domain stack entry for prometheus/client_golang. Each
// Server gets its own registry rather than the global DefaultRegisterer
// so that multiple Servers can coexist in one process (as tests do)
// without a duplicate-registration panic.
type Metrics struct {
	ToolExecutions *prometheus.CounterVec
	SleepCycles    *prometheus.CounterVec
	MemoryEntries  prometheus.Gauge

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aigent_tool_execution_total",
			Help: "Tool invocations, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		SleepCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aigent_sleep_cycles_total",
			Help: "Consolidation passes run, labeled by mode.",
		}, []string{"mode"}),
		MemoryEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aigent_memory_entries_total",
			Help: "Active memory entry count across all tiers.",
		}),
	}
}

// ServeMetrics starts a minimal HTTP listener exposing the registry in
// Prometheus text format until ctx is cancelled. Separate from the
// socket protocol: neither GetStatus nor `aigent daemon status`
// reports these metrics; they are only available by scraping.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener stopped", "error", err)
	}
}
