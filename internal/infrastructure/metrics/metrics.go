package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"tickfeed/internal/application/port"
)

var allStatuses = []port.Status{
	port.StatusDisconnected,
	port.StatusConnecting,
	port.StatusConnected,
	port.StatusCloudActive,
	port.StatusSilent,
	port.StatusReconnecting,
	port.StatusError,
}

// Prometheus port.Metrics 的 prometheus 实现
type Prometheus struct {
	reg prometheus.Gatherer

	status         *prometheus.GaugeVec
	transitions    *prometheus.CounterVec
	messages       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	orphaned       *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	stalls         *prometheus.CounterVec
	simulatedTicks prometheus.Counter
}

// New 在 reg 上注册全部指标；reg 为 nil 时使用一个新的 registry
func New(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Prometheus{
		reg: reg,
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickfeed_stream_status",
			Help: "Current stream status (1 for the active status)",
		}, []string{"status"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_stream_transitions_total",
			Help: "Total status transitions, partitioned by target status",
		}, []string{"status"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_messages_total",
			Help: "Total messages received from live providers",
		}, []string{"provider"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_dropped_total",
			Help: "Total dropped messages or records",
		}, []string{"provider", "reason"}),
		orphaned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_orphaned_total",
			Help: "Total events from superseded transports",
		}, []string{"provider"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_reconnects_total",
			Help: "Total scheduled reconnect attempts, partitioned by target provider",
		}, []string{"provider"}),
		stalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tickfeed_stalls_total",
			Help: "Total silent connections detected",
		}, []string{"provider"}),
		simulatedTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "tickfeed_simulated_ticks_total",
			Help: "Total synthetic ticks fanned out",
		}),
	}
}

func (p *Prometheus) SetStatus(s port.Status) {
	for _, st := range allStatuses {
		v := 0.0
		if st == s {
			v = 1
		}
		p.status.WithLabelValues(string(st)).Set(v)
	}
	p.transitions.WithLabelValues(string(s)).Inc()
}

func (p *Prometheus) IncMessages(provider string)        { p.messages.WithLabelValues(provider).Inc() }
func (p *Prometheus) IncDropped(provider, reason string) { p.dropped.WithLabelValues(provider, reason).Inc() }
func (p *Prometheus) IncOrphaned(provider string)        { p.orphaned.WithLabelValues(provider).Inc() }
func (p *Prometheus) IncReconnects(provider string)      { p.reconnects.WithLabelValues(provider).Inc() }
func (p *Prometheus) IncStalls(provider string)          { p.stalls.WithLabelValues(provider).Inc() }
func (p *Prometheus) IncSimulatedTicks()                 { p.simulatedTicks.Inc() }

// Handler /metrics 的 http.Handler
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// Serve 在 addr 上暴露 /metrics，直到 ctx 结束
func (p *Prometheus) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ port.Metrics = (*Prometheus)(nil)
