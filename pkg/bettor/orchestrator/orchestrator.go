// Package orchestrator runs the decision cycle: generate parlay
// candidates, pass them through the risk and budget policies, and place
// the survivors through the routed sportsbooks.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mwhitcomb/parlayd/pkg/bettor/accounts"
	"github.com/mwhitcomb/parlayd/pkg/bettor/budget"
	"github.com/mwhitcomb/parlayd/pkg/bettor/metrics"
	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
	"github.com/mwhitcomb/parlayd/pkg/bettor/risk"
	"github.com/mwhitcomb/parlayd/pkg/sportsbook"
)

// Veto reasons recorded on skipped candidates.
const (
	VetoCooldown = "cooldown"
	VetoStale    = "stale_price"
	VetoNoStake  = "no_stake"
	VetoBudget   = "budget"
	VetoSubmit   = "submit_failed"
	VetoNoBook   = "no_book"
	VetoMaxBets  = "max_bets_reached"
)

// LegSource supplies the candidate leg pool for a cycle.
type LegSource interface {
	Legs(ctx context.Context, sports []string) ([]parlay.Leg, error)
}

// Revalidator decides whether a candidate still clears the bar given the
// book's live prices, and returns the price to submit at. Returning false
// vetoes the candidate.
type Revalidator func(cand *parlay.Candidate, live sportsbook.PriceMap) (price float64, ok bool)

// Config holds orchestrator settings.
type Config struct {
	Sports          []string
	MaxBetsPerCycle int
	// PriceTolerance is the largest relative drop from the composed price
	// the default revalidator accepts.
	PriceTolerance float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sports:          []string{"nba", "nhl", "nfl"},
		MaxBetsPerCycle: 3,
		PriceTolerance:  0.05,
	}
}

// CycleReport summarizes one decision cycle.
type CycleReport struct {
	StartedAt  time.Time
	Duration   time.Duration
	Candidates int
	Placed     []*risk.Bet
	Vetoes     map[string]int
}

// Orchestrator wires the policy engines to the sportsbooks.
type Orchestrator struct {
	cfg        *Config
	source     LegSource
	optimizer  *parlay.Optimizer
	gate       *risk.Gate
	ledger     *budget.Ledger
	router     *sportsbook.Router
	tracker    *accounts.Tracker
	revalidate Revalidator
	metrics    *metrics.DecisionMetrics
	log        *zap.Logger
}

// New creates an orchestrator. The tracker may be nil when no account
// mirroring is wanted; the revalidator may be nil to use the built-in
// price-tolerance check.
func New(cfg *Config, source LegSource, opt *parlay.Optimizer, gate *risk.Gate,
	ledger *budget.Ledger, router *sportsbook.Router, tracker *accounts.Tracker,
	m *metrics.DecisionMetrics, log *zap.Logger) *Orchestrator {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if m == nil {
		m = metrics.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		source:    source,
		optimizer: opt,
		gate:      gate,
		ledger:    ledger,
		router:    router,
		tracker:   tracker,
		metrics:   m,
		log:       log,
	}
	o.revalidate = o.defaultRevalidate
	return o
}

// SetRevalidator replaces the live-price check.
func (o *Orchestrator) SetRevalidator(fn Revalidator) {
	if fn != nil {
		o.revalidate = fn
	}
}

// RunCycle performs one full decision cycle. Candidates run through the
// policies one at a time in a single goroutine so that each placement's
// spend is visible to the next candidate's budget check.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{StartedAt: start.UTC(), Vetoes: make(map[string]int)}

	defer func() {
		report.Duration = time.Since(start)
		o.metrics.RecordCycle(cycleStatus(report), report.Duration.Seconds())
		o.publishRiskGauges()
	}()

	if o.gate.CheckStopLoss() {
		o.log.Warn("cycle skipped, stop-loss cool-down active",
			zap.String("daily_pnl", o.gate.DailyPnL().String()))
		report.Vetoes[VetoCooldown]++
		return report, nil
	}

	pool, err := o.source.Legs(ctx, o.cfg.Sports)
	if err != nil {
		return report, fmt.Errorf("fetch legs: %w", err)
	}

	candidates := o.optimizer.Generate(pool, o.cfg.Sports)
	report.Candidates = len(candidates)
	for _, cand := range candidates {
		o.metrics.RecordCandidate(cand.Sport, cand.ExpectedValue, 0)
	}

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(report.Placed) >= o.cfg.MaxBetsPerCycle {
			report.Vetoes[VetoMaxBets]++
			continue
		}

		bet, veto := o.placeCandidate(ctx, cand)
		if veto != "" {
			report.Vetoes[veto]++
			o.metrics.RecordVeto(veto)
			continue
		}
		report.Placed = append(report.Placed, bet)
	}

	o.log.Info("cycle complete",
		zap.Int("candidates", report.Candidates),
		zap.Int("placed", len(report.Placed)),
		zap.Any("vetoes", report.Vetoes))
	return report, nil
}

// placeCandidate runs a single candidate through revalidation, risk
// sizing, budget, and submission. A non-empty veto reason means the
// candidate was skipped, not that the cycle failed.
func (o *Orchestrator) placeCandidate(ctx context.Context, cand *parlay.Candidate) (*risk.Bet, string) {
	book, err := o.router.ForSport(cand.Sport)
	if err != nil {
		o.log.Warn("no book for sport", zap.String("sport", cand.Sport), zap.Error(err))
		return nil, VetoNoBook
	}

	eventIDs := make([]string, 0, len(cand.Legs))
	for _, leg := range cand.Legs {
		eventIDs = append(eventIDs, leg.EventID)
	}
	live, err := book.FetchPrices(ctx, cand.Sport, eventIDs)
	if err != nil {
		o.log.Warn("price fetch failed",
			zap.String("book", book.Name()),
			zap.String("candidate", cand.ID),
			zap.Error(err))
		return nil, VetoStale
	}

	price, ok := o.revalidate(cand, live)
	if !ok {
		o.log.Debug("candidate failed revalidation",
			zap.String("candidate", cand.ID),
			zap.Float64("composed_price", cand.CombinedPrice))
		return nil, VetoStale
	}

	stake := o.gate.KellyStake(cand.CombinedWinProbability, price)
	if !stake.IsPositive() {
		return nil, VetoNoStake
	}

	if !o.ledger.CanSpend(stake, cand.Sport, time.Time{}) {
		o.log.Info("budget veto",
			zap.String("candidate", cand.ID),
			zap.String("stake", stake.String()),
			zap.String("sport", cand.Sport))
		return nil, VetoBudget
	}

	orderID, err := book.SubmitOrder(ctx, cand.Legs, stake, price)
	if err != nil {
		o.log.Error("order submission failed",
			zap.String("book", book.Name()),
			zap.String("candidate", cand.ID),
			zap.Error(err))
		return nil, VetoSubmit
	}

	bet := o.gate.RecordBet(cand, stake, orderID, book.Name())
	if _, err := o.ledger.RecordSpend(bet.ID, stake, cand.Sport, book.Name(), time.Time{}); err != nil {
		o.log.Error("spend not journaled", zap.String("bet", bet.ID), zap.Error(err))
	}
	o.metrics.RecordBetPlaced(book.Name(), cand.Sport, metrics.DecimalToFloat64(stake))

	o.log.Info("bet placed",
		zap.String("bet", bet.ID),
		zap.String("order", orderID),
		zap.String("book", book.Name()),
		zap.String("sport", cand.Sport),
		zap.String("stake", stake.String()),
		zap.Float64("price", price))
	return bet, ""
}

// defaultRevalidate recomputes the combined price from the book's live
// odds and accepts it if it has not dropped more than PriceTolerance
// below the composed price. Legs the book is not currently quoting keep
// their composed price.
func (o *Orchestrator) defaultRevalidate(cand *parlay.Candidate, live sportsbook.PriceMap) (float64, bool) {
	price := 1.0
	for _, leg := range cand.Legs {
		if p, ok := live[leg.EventID]; ok {
			price *= p
		} else {
			price *= leg.Price
		}
	}
	if price < cand.CombinedPrice*(1-o.cfg.PriceTolerance) {
		return 0, false
	}
	return price, true
}

// SettlePending polls the books for every pending bet and settles those
// that have been graded, mirroring outcomes into the account tracker.
func (o *Orchestrator) SettlePending(ctx context.Context) (int, error) {
	settled := 0
	for _, bet := range o.gate.PendingBets() {
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		book, ok := o.router.ByName(bet.Broker)
		if !ok {
			o.log.Warn("pending bet on unknown book", zap.String("bet", bet.ID), zap.String("book", bet.Broker))
			continue
		}

		status, err := book.PollOrder(ctx, bet.ConfirmationID)
		if err != nil {
			o.log.Warn("poll failed",
				zap.String("bet", bet.ID),
				zap.String("order", bet.ConfirmationID),
				zap.Error(err))
			continue
		}
		if status.State != sportsbook.StateSettled && status.State != sportsbook.StateVoided {
			continue
		}

		result, ok := parseResult(status.Result)
		if !ok {
			o.log.Warn("unparseable result",
				zap.String("bet", bet.ID),
				zap.String("result", status.Result))
			continue
		}

		if _, err := o.gate.SettleBet(bet.ID, result); err != nil {
			o.log.Error("settlement failed", zap.String("bet", bet.ID), zap.Error(err))
			continue
		}
		settled++
		o.metrics.RecordBetSettled(bet.Broker, string(result))

		if o.tracker != nil {
			if _, err := o.tracker.ApplyBetResultByName(bet.Broker, bet.Stake, bet.Price, result); err != nil {
				o.log.Warn("account not mirrored", zap.String("book", bet.Broker), zap.Error(err))
			}
		}
	}

	o.publishRiskGauges()
	if settled > 0 {
		o.log.Info("settlement pass complete", zap.Int("settled", settled))
	}
	return settled, nil
}

// ResetDaily clears the daily stop-loss window. Run once per day before
// the first cycle.
func (o *Orchestrator) ResetDaily() {
	o.gate.ResetDailyLimits()
	o.publishRiskGauges()
}

func (o *Orchestrator) publishRiskGauges() {
	exp := o.gate.GetExposure()
	o.metrics.UpdateRisk(
		metrics.DecimalToFloat64(o.gate.Bankroll()),
		metrics.DecimalToFloat64(o.gate.DailyPnL()),
		metrics.DecimalToFloat64(exp.TotalOpenStake),
		o.gate.CoolingDown(),
	)
	for period, summary := range o.ledger.Summary(time.Now().UTC()) {
		o.metrics.UpdateBudget(string(period),
			metrics.DecimalToFloat64(summary.Spent),
			summary.UtilisationPct)
	}
}

func parseResult(s string) (risk.Result, bool) {
	switch s {
	case "won":
		return risk.ResultWon, true
	case "lost":
		return risk.ResultLost, true
	case "void", "voided":
		return risk.ResultVoid, true
	}
	return "", false
}

func cycleStatus(r *CycleReport) string {
	switch {
	case r.Vetoes[VetoCooldown] > 0:
		return "cooldown"
	case len(r.Placed) > 0:
		return "placed"
	default:
		return "no_bets"
	}
}
