package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthMetrics 追踪注册/登录/鉴权链路的核心指标。
type AuthMetrics struct {
	OperationDuration *prometheus.HistogramVec
	Registrations     *prometheus.CounterVec
	PhotoUploads      *prometheus.CounterVec
	ProviderCalls     *prometheus.CounterVec
}

var (
	// DefaultAuthMetrics 全局共享实例。
	DefaultAuthMetrics *AuthMetrics

	authDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5}
)

func init() {
	DefaultAuthMetrics = NewAuthMetrics("idgw")
}

// NewAuthMetricsWithRegistry 创建 AuthMetrics,允许 tests 注入自定义 registry。
func NewAuthMetricsWithRegistry(namespace string, reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = GetRegisterer()
	}
	factory := promauto.With(reg)

	return &AuthMetrics{
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_operation_duration_seconds",
				Help:      "Latency histogram for register/login/profile operations",
				Buckets:   authDurationBuckets,
			},
			[]string{"operation", "outcome"},
		),

		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_registrations_total",
				Help:      "Count of registration attempts grouped by outcome",
			},
			[]string{"outcome"},
		),

		PhotoUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_photo_uploads_total",
				Help:      "Count of profile photo uploads grouped by outcome",
			},
			[]string{"outcome"},
		),

		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Count of upstream provider calls grouped by provider, operation, and result",
			},
			[]string{"provider", "operation", "result"},
		),
	}
}

// NewAuthMetrics 创建默认 registry 的 AuthMetrics。
func NewAuthMetrics(namespace string) *AuthMetrics {
	return NewAuthMetricsWithRegistry(namespace, GetRegisterer())
}

// ObserveOperation 记录业务操作耗时。
func (m *AuthMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "success"
	}
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// IncRegistration 记录一次注册尝试。
func (m *AuthMetrics) IncRegistration(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// IncPhotoUpload 记录一次照片上传。
func (m *AuthMetrics) IncPhotoUpload(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.PhotoUploads.WithLabelValues(outcome).Inc()
}

// IncProviderCall 记录一次外部提供方调用。
func (m *AuthMetrics) IncProviderCall(provider, operation, result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.ProviderCalls.WithLabelValues(provider, operation, result).Inc()
}
