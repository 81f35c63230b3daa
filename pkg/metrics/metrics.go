// Package metrics 期权定价业务指标
// 传输层 HTTP/gRPC 指标与 /metrics 暴露复用 wyfcoding/pkg/metrics 的统一 registry
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
)

const namespace = "fxoption"

// Metrics 指标集合
type Metrics struct {
	// 统一 registry，包含 HTTP/gRPC 标准指标与 Go 运行时指标
	*pkgmetrics.Metrics

	// 已定价期权数，按 type
	OptionsPricedTotal *prometheus.CounterVec
	// 已生成期权链数
	ChainsGeneratedTotal *prometheus.CounterVec
	// 每条期权链的行数
	ChainRows *prometheus.HistogramVec
	// 定价错误数，按 kind
	PricingErrorsTotal *prometheus.CounterVec
	// 定价耗时，按 operation
	PricingDuration *prometheus.HistogramVec
}

// New 创建指标实例。每个实例持有独立的 registry，可在测试中重复创建。
func New(serviceName string) *Metrics {
	base := pkgmetrics.NewMetrics(serviceName)
	return &Metrics{
		Metrics: base,
		OptionsPricedTotal: base.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "options_priced_total",
			Help:      "Total options priced",
		}, []string{"type"}),
		ChainsGeneratedTotal: base.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chains_generated_total",
			Help:      "Total option chains generated",
		}, nil),
		ChainRows: base.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_rows",
			Help:      "Number of strikes per generated chain",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000},
		}, nil),
		PricingErrorsTotal: base.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_errors_total",
			Help:      "Total rejected pricing requests",
		}, []string{"kind"}),
		PricingDuration: base.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_duration_seconds",
			Help:      "Pricing computation duration in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"operation"}),
	}
}

// PricingCollector 定价业务指标收集接口
type PricingCollector interface {
	// 记录一次成功定价
	RecordOptionPriced(optionType string)
	// 记录一条生成的期权链
	RecordChain(rows int)
	// 记录一次被拒绝的请求
	RecordPricingError(kind string)
	// 记录计算耗时
	ObservePricingDuration(operation string, seconds float64)
}

// DefaultMetricsCollector 基于 Metrics 的收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

var _ PricingCollector = (*DefaultMetricsCollector)(nil)

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{metrics: metrics}
}

// RecordOptionPriced 记录一次成功定价
func (dmc *DefaultMetricsCollector) RecordOptionPriced(optionType string) {
	dmc.metrics.OptionsPricedTotal.WithLabelValues(optionType).Inc()
}

// RecordChain 记录一条生成的期权链
func (dmc *DefaultMetricsCollector) RecordChain(rows int) {
	dmc.metrics.ChainsGeneratedTotal.WithLabelValues().Inc()
	dmc.metrics.ChainRows.WithLabelValues().Observe(float64(rows))
}

// RecordPricingError 记录一次被拒绝的请求
func (dmc *DefaultMetricsCollector) RecordPricingError(kind string) {
	dmc.metrics.PricingErrorsTotal.WithLabelValues(kind).Inc()
}

// ObservePricingDuration 记录计算耗时
func (dmc *DefaultMetricsCollector) ObservePricingDuration(operation string, seconds float64) {
	dmc.metrics.PricingDuration.WithLabelValues(operation).Observe(seconds)
}

// NopCollector 不记录任何指标，用于 CLI 与测试
type NopCollector struct{}

func (NopCollector) RecordOptionPriced(string)              {}
func (NopCollector) RecordChain(int)                        {}
func (NopCollector) RecordPricingError(string)              {}
func (NopCollector) ObservePricingDuration(string, float64) {}
