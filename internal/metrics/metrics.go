// Package metrics exposes RPC and ZMQ counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	registerOnce sync.Once

	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bitcoin_tui",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bitcoin_tui",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "JSON-RPC call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	zmqEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bitcoin_tui",
			Subsystem: "zmq",
			Name:      "events_total",
			Help:      "ZMQ notifications received by topic.",
		},
		[]string{"topic"},
	)
	pollSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bitcoin_tui",
			Subsystem: "poll",
			Name:      "skipped_total",
			Help:      "Ticks dropped because a refresh of the same class was in flight.",
		},
		[]string{"class"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rpcCalls, rpcDuration, zmqEvents, pollSkips)
	})
}

// RecordRPCCall counts one call. outcome is "ok" or an error kind.
func RecordRPCCall(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(method, outcome).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordZMQEvent(topic string) {
	RegisterMetrics()
	zmqEvents.WithLabelValues(topic).Inc()
}

func RecordPollSkip(class string) {
	RegisterMetrics()
	pollSkips.WithLabelValues(class).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) {
	RegisterMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: 10},
		),
	))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}
