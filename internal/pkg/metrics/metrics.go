package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transcriptionFallbacks *prometheus.CounterVec
	analysisFailures       *prometheus.CounterVec
	analysisDuration       *prometheus.HistogramVec
	recordingsTotal        *prometheus.CounterVec
	rateLimitDenied        *prometheus.CounterVec
}

// New 在独立注册表上创建指标，避免测试之间重复注册
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		transcriptionFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_transcription_fallback_total",
				Help: "Conversations analyzed with the sample transcript",
			},
			[]string{"reason"},
		),
		analysisFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_analysis_failures_total",
				Help: "Failed analysis requests by failure kind",
			},
			[]string{"kind"},
		),
		analysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_analysis_duration_seconds",
				Help:    "End-to-end conversation analysis duration",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"outcome"},
		),
		recordingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_recordings_total",
				Help: "Finished recordings by result",
			},
			[]string{"result"},
		),
		rateLimitDenied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_deny_total",
				Help: "Denied requests by rate limiter",
			},
			[]string{"route"},
		),
	}
}

// Registry 暴露底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware 记录请求数与耗时
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// 以下方法允许 nil 接收者，便于在测试中省略指标

func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.transcriptionFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveAnalysisFailure(kind string) {
	if m == nil {
		return
	}
	m.analysisFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveRecording(result string) {
	if m == nil {
		return
	}
	m.recordingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(route).Inc()
}
