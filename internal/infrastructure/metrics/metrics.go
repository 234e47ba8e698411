// Package metrics 定义服务的 Prometheus 指标
// 指标通过 promauto 注册到默认 Registry，由 /metrics 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentor_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// 持久化指标
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mentor_chat_messages_persisted_total",
			Help: "Total chat messages written to the database",
		},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_chat_persistence_failures_total",
			Help: "Total failed message writes or read receipts",
		},
		[]string{"op"}, // "append" / "mark_seen"
	)

	// 实时通道指标
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_chat_events_delivered_total",
			Help: "Total events handed to the broker for delivery",
		},
		[]string{"event"},
	)

	OnlineSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mentor_chat_online_sessions",
			Help: "Live sessions registered on this instance",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_chat_rate_limited_total",
			Help: "Total inbound events rejected by the per-connection limiter",
		},
		[]string{"event"},
	)
)
