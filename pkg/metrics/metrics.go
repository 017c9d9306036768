// Package metrics 暴露 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标，nil 接收者上的方法均为空操作
type Metrics struct {
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	supportMessages *prometheus.CounterVec
	chatsCreated    prometheus.Counter
	logins          *prometheus.CounterVec
}

// New 在独立注册表上注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer 注册到指定注册表
func NewWithRegisterer(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vst_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vst_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		supportMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vst_support_messages_total",
			Help: "Support messages posted by author role.",
		}, []string{"author_role"}),
		chatsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vst_support_chats_created_total",
			Help: "Support chats created.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vst_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.supportMessages, m.chatsCreated, m.logins)
	return m
}

// Middleware 记录请求次数与耗时，route 使用路由模板避免高基数
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SupportMessagePosted 工单消息计数
func (m *Metrics) SupportMessagePosted(authorRole string) {
	if m == nil {
		return
	}
	m.supportMessages.WithLabelValues(authorRole).Inc()
}

// SupportChatCreated 新建工单计数
func (m *Metrics) SupportChatCreated() {
	if m == nil {
		return
	}
	m.chatsCreated.Inc()
}

// LoginAttempt 登录结果计数：success / invalid / disabled / forbidden
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}
