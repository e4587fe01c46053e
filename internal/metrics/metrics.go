// Package metrics exposes the process's operational state as
// Prometheus collectors: kill-switch state, evolution attempt
// outcomes, audit cycle counts, and the shadow-vs-live Sharpe
// comparison, grounded on the teacher's internal/metrics collector but
// backed by real counters/gauges instead of simulated fixtures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aether_evo"

// Collector owns every metric the process publishes on /metrics.
type Collector struct {
	killSwitchActive    prometheus.Gauge
	currentEquity       prometheus.Gauge
	registryVersion     prometheus.Gauge
	riskLevelHigh       prometheus.Gauge
	sentimentMultiplier prometheus.Gauge
	whaleDumpRisk       prometheus.Gauge

	evolutionAttemptsTotal  *prometheus.CounterVec
	auditCyclesTotal        prometheus.Counter
	auditedPredictionsTotal *prometheus.CounterVec
	promotionAlertsTotal    prometheus.Counter

	shadowSharpe prometheus.Gauge
	liveSharpe   prometheus.Gauge
	shadowROI    prometheus.Gauge
	liveROI      prometheus.Gauge
}

// NewCollector registers every metric against reg and returns the
// handle used to update them. Passing prometheus.NewRegistry() (rather
// than the global DefaultRegisterer) keeps tests hermetic.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		killSwitchActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kill_switch_active",
			Help:      "1 if the equity kill-switch is latched, 0 otherwise.",
		}),
		currentEquity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_equity",
			Help:      "Guardrails' most recently observed account equity.",
		}),
		registryVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decision_module_version",
			Help:      "Current version counter of the active decision module in the registry.",
		}),
		riskLevelHigh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_level_high",
			Help:      "1 if SharedState's risk level is HIGH, 0 if NORMAL.",
		}),
		sentimentMultiplier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sentiment_multiplier",
			Help:      "SharedState's current sentiment size multiplier.",
		}),
		whaleDumpRisk: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "whale_dump_risk",
			Help:      "1 if a whale distribution event is currently elevating risk, 0 otherwise.",
		}),
		evolutionAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evolution_attempts_total",
			Help:      "Evolution protocol attempts, labeled by outcome (accepted or the rejecting gate's name).",
		}, []string{"outcome"}),
		auditCyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_audit_cycles_total",
			Help:      "Completed reconciliation audit cycles.",
		}),
		auditedPredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audited_predictions_total",
			Help:      "Predictions scored by the reconciliation auditor, labeled by timeframe.",
		}, []string{"timeframe"}),
		promotionAlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shadow_promotion_alerts_total",
			Help:      "Shadow-outperforms-live promotion alerts raised.",
		}),
		shadowSharpe: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shadow_sharpe_ratio",
			Help:      "Shadow strategy's rolling annualized Sharpe ratio.",
		}),
		liveSharpe: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sharpe_ratio",
			Help:      "Live strategy's rolling annualized Sharpe ratio.",
		}),
		shadowROI: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shadow_avg_roi_pct",
			Help:      "Shadow strategy's average simulated ROI percentage.",
		}),
		liveROI: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_avg_roi_pct",
			Help:      "Live strategy's average simulated ROI percentage.",
		}),
	}
}

// SetKillSwitch records the guardrails kill-switch latch state.
func (c *Collector) SetKillSwitch(active bool) {
	c.killSwitchActive.Set(boolToFloat(active))
}

// SetEquity records the guardrails current equity observation.
func (c *Collector) SetEquity(equity float64) {
	c.currentEquity.Set(equity)
}

// SetRegistryVersion records the architect registry's version counter.
func (c *Collector) SetRegistryVersion(version uint64) {
	c.registryVersion.Set(float64(version))
}

// SetSharedState records the risk level, sentiment multiplier, and
// whale-dump flag from a SharedState snapshot.
func (c *Collector) SetSharedState(riskHigh bool, sentimentMultiplier float64, whaleDumpRisk bool) {
	c.riskLevelHigh.Set(boolToFloat(riskHigh))
	c.sentimentMultiplier.Set(sentimentMultiplier)
	c.whaleDumpRisk.Set(boolToFloat(whaleDumpRisk))
}

// RecordEvolutionAttempt increments the attempt counter under the
// "accepted" label, or under the rejecting gate's name.
func (c *Collector) RecordEvolutionAttempt(accepted bool, rejectedBy string) {
	outcome := "accepted"
	if !accepted {
		outcome = rejectedBy
	}
	c.evolutionAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuditCycle increments the reconciliation audit cycle counter.
func (c *Collector) RecordAuditCycle() {
	c.auditCyclesTotal.Inc()
}

// RecordAuditedPrediction increments the audited-predictions counter
// for the given timeframe.
func (c *Collector) RecordAuditedPrediction(timeframe string) {
	c.auditedPredictionsTotal.WithLabelValues(timeframe).Inc()
}

// RecordPromotionAlert increments the shadow promotion alert counter.
func (c *Collector) RecordPromotionAlert() {
	c.promotionAlertsTotal.Inc()
}

// SetShadowLiveComparison records the current shadow-vs-live Sharpe and
// average ROI readings.
func (c *Collector) SetShadowLiveComparison(shadowSharpe, liveSharpe, shadowROI, liveROI float64) {
	c.shadowSharpe.Set(shadowSharpe)
	c.liveSharpe.Set(liveSharpe)
	c.shadowROI.Set(shadowROI)
	c.liveROI.Set(liveROI)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
