// Package metrics provides Prometheus metrics for the betting engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// DecisionMetrics collects and exposes betting-related Prometheus metrics.
type DecisionMetrics struct {
	registry *prometheus.Registry

	// Candidate metrics
	CandidatesTotal  *prometheus.CounterVec
	CandidateEdge    *prometheus.HistogramVec
	CircadianFactor  *prometheus.HistogramVec

	// Bet metrics
	BetsPlaced  *prometheus.CounterVec
	BetsSettled *prometheus.CounterVec
	StakeTotal  *prometheus.CounterVec
	StakeSize   *prometheus.HistogramVec

	// Risk metrics
	Bankroll       *prometheus.GaugeVec
	DailyPnL       *prometheus.GaugeVec
	OpenExposure   *prometheus.GaugeVec
	CooldownActive *prometheus.GaugeVec
	VetoesTotal    *prometheus.CounterVec

	// Budget metrics
	BudgetUtilisation *prometheus.GaugeVec
	BudgetSpent       *prometheus.GaugeVec

	// Cycle metrics
	CycleRuns     *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
}

// NewDecisionMetrics creates a new betting metrics collector.
func NewDecisionMetrics() *DecisionMetrics {
	registry := prometheus.NewRegistry()

	dm := &DecisionMetrics{
		registry: registry,

		// Candidate metrics
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_candidates_total",
				Help: "Total number of parlay candidates generated",
			},
			[]string{"sport"},
		),
		CandidateEdge: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlayd_candidate_edge",
				Help:    "Expected value per unit stake of generated candidates",
				Buckets: prometheus.LinearBuckets(0, 0.05, 11), // 0 to 0.5
			},
			[]string{"sport"},
		),
		CircadianFactor: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlayd_circadian_factor",
				Help:    "Circadian adjustment factor applied to candidate edges",
				Buckets: prometheus.LinearBuckets(-0.3, 0.05, 13), // -0.3 to 0.3
			},
			[]string{"sport"},
		),

		// Bet metrics
		BetsPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_bets_placed_total",
				Help: "Total number of bets submitted to sportsbooks",
			},
			[]string{"book", "sport"},
		),
		BetsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_bets_settled_total",
				Help: "Total number of bets settled",
			},
			[]string{"book", "result"},
		),
		StakeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_stake_total_usd",
				Help: "Total stake placed in USD",
			},
			[]string{"book"},
		),
		StakeSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlayd_stake_size_usd",
				Help:    "Individual bet stake in USD",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 500},
			},
			[]string{"book"},
		),

		// Risk metrics
		Bankroll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_bankroll_usd",
				Help: "Current bankroll in USD",
			},
			[]string{},
		),
		DailyPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_daily_pnl_usd",
				Help: "Today's realized P&L in USD",
			},
			[]string{},
		),
		OpenExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_open_exposure_usd",
				Help: "Total stake tied up in pending bets in USD",
			},
			[]string{},
		),
		CooldownActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_cooldown_active",
				Help: "Whether stop-loss cool-down is active (1=yes, 0=no)",
			},
			[]string{},
		),
		VetoesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_vetoes_total",
				Help: "Total number of candidates vetoed before placement",
			},
			[]string{"reason"},
		),

		// Budget metrics
		BudgetUtilisation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_budget_utilisation_pct",
				Help: "Percentage of the period budget already spent",
			},
			[]string{"period"},
		),
		BudgetSpent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parlayd_budget_spent_usd",
				Help: "Amount spent in the current period in USD",
			},
			[]string{"period"},
		),

		// Cycle metrics
		CycleRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlayd_cycle_runs_total",
				Help: "Total number of decision cycles executed",
			},
			[]string{"status"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlayd_cycle_duration_seconds",
				Help:    "Decision cycle duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{},
		),
	}

	dm.registerAll()

	return dm
}

func (dm *DecisionMetrics) registerAll() {
	dm.registry.MustRegister(
		dm.CandidatesTotal,
		dm.CandidateEdge,
		dm.CircadianFactor,
		dm.BetsPlaced,
		dm.BetsSettled,
		dm.StakeTotal,
		dm.StakeSize,
		dm.Bankroll,
		dm.DailyPnL,
		dm.OpenExposure,
		dm.CooldownActive,
		dm.VetoesTotal,
		dm.BudgetUtilisation,
		dm.BudgetSpent,
		dm.CycleRuns,
		dm.CycleDuration,
	)
}

// Registry returns the prometheus registry.
func (dm *DecisionMetrics) Registry() *prometheus.Registry {
	return dm.registry
}

// RecordCandidate records a generated parlay candidate.
func (dm *DecisionMetrics) RecordCandidate(sport string, edge, circadianFactor float64) {
	dm.CandidatesTotal.WithLabelValues(sport).Inc()
	dm.CandidateEdge.WithLabelValues(sport).Observe(edge)
	dm.CircadianFactor.WithLabelValues(sport).Observe(circadianFactor)
}

// RecordBetPlaced records a submitted bet.
func (dm *DecisionMetrics) RecordBetPlaced(book, sport string, stakeUSD float64) {
	dm.BetsPlaced.WithLabelValues(book, sport).Inc()
	dm.StakeTotal.WithLabelValues(book).Add(stakeUSD)
	dm.StakeSize.WithLabelValues(book).Observe(stakeUSD)
}

// RecordBetSettled records a settled bet.
func (dm *DecisionMetrics) RecordBetSettled(book, result string) {
	dm.BetsSettled.WithLabelValues(book, result).Inc()
}

// RecordVeto records a candidate rejected before placement.
func (dm *DecisionMetrics) RecordVeto(reason string) {
	dm.VetoesTotal.WithLabelValues(reason).Inc()
}

// UpdateRisk updates bankroll and exposure gauges.
func (dm *DecisionMetrics) UpdateRisk(bankroll, dailyPnL, exposure float64, coolingDown bool) {
	dm.Bankroll.WithLabelValues().Set(bankroll)
	dm.DailyPnL.WithLabelValues().Set(dailyPnL)
	dm.OpenExposure.WithLabelValues().Set(exposure)
	if coolingDown {
		dm.CooldownActive.WithLabelValues().Set(1)
	} else {
		dm.CooldownActive.WithLabelValues().Set(0)
	}
}

// UpdateBudget updates the budget gauges for one period.
func (dm *DecisionMetrics) UpdateBudget(period string, spentUSD, utilisationPct float64) {
	dm.BudgetSpent.WithLabelValues(period).Set(spentUSD)
	dm.BudgetUtilisation.WithLabelValues(period).Set(utilisationPct)
}

// RecordCycle records a decision cycle run.
func (dm *DecisionMetrics) RecordCycle(status string, durationSec float64) {
	dm.CycleRuns.WithLabelValues(status).Inc()
	if durationSec > 0 {
		dm.CycleDuration.WithLabelValues().Observe(durationSec)
	}
}

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *DecisionMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *DecisionMetrics {
	once.Do(func() {
		defaultMetrics = NewDecisionMetrics()
	})
	return defaultMetrics
}
