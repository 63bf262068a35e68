// Package risk gates wager placement behind bankroll management: Kelly
// stake sizing, daily stop-loss with cool-down, exposure aggregation, and
// an append-only audit trail of placed wagers.
package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

// ErrBetNotFound is returned when settling an unknown bet id. Callers
// routinely probe for existence, so this is an outcome, not a fault.
var ErrBetNotFound = errors.New("risk: bet not found")

// BetStatus is the lifecycle state of a placed wager.
type BetStatus string

const (
	StatusPending BetStatus = "pending"
	StatusWon     BetStatus = "won"
	StatusLost    BetStatus = "lost"
	StatusVoid    BetStatus = "void"
)

// Result is a settlement outcome.
type Result string

const (
	ResultWon  Result = "won"
	ResultLost Result = "lost"
	ResultVoid Result = "void"
)

// Bet is the audit record of a placed order. Bets are created on
// acceptance, mutated only by settlement, and never deleted.
type Bet struct {
	ID             string // internal id
	ConfirmationID string // broker-assigned confirmation id
	Broker         string
	Sport          string
	Legs           []parlay.Leg // snapshot at placement time
	Stake          decimal.Decimal
	Price          float64
	ExpectedValue  float64
	Status         BetStatus
	PlacedAt       time.Time
	SettledAt      time.Time // zero until settled
}

// Config carries the gate's bankroll parameters.
type Config struct {
	Bankroll        decimal.Decimal // Default: 1000
	MaxDailyLossPct float64         // Default: 0.10
	MaxExposurePct  float64         // Default: 0.20
	KellyFraction   float64         // Default: 0.25
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Bankroll:        decimal.NewFromInt(1000),
		MaxDailyLossPct: 0.10,
		MaxExposurePct:  0.20,
		KellyFraction:   0.25,
	}
}

// Exposure aggregates the currently open (pending) stake.
type Exposure struct {
	TotalOpenStake decimal.Decimal
	OpenBetCount   int
	ByBroker       map[string]decimal.Decimal
	BySport        map[string]decimal.Decimal
	ExposurePct    float64 // open stake as % of bankroll; 0 when bankroll <= 0
}

// Gate is the bankroll state machine. It moves between normal and
// cooling-down; while cooling down all sizing must be refused until
// ResetDailyLimits is called at the start of the next trading day.
type Gate struct {
	cfg *Config
	log *zap.Logger

	mu          sync.RWMutex
	bankroll    decimal.Decimal
	dailyPnL    decimal.Decimal
	coolingDown bool
	bets        map[string]*Bet
}

// NewGate creates a gate, filling unset config fields with defaults.
func NewGate(cfg *Config, log *zap.Logger) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defaults := DefaultConfig()
	if cfg.Bankroll.IsZero() {
		cfg.Bankroll = defaults.Bankroll
	}
	if cfg.MaxDailyLossPct == 0 {
		cfg.MaxDailyLossPct = defaults.MaxDailyLossPct
	}
	if cfg.MaxExposurePct == 0 {
		cfg.MaxExposurePct = defaults.MaxExposurePct
	}
	if cfg.KellyFraction == 0 {
		cfg.KellyFraction = defaults.KellyFraction
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		cfg:      cfg,
		log:      log,
		bankroll: cfg.Bankroll,
		bets:     make(map[string]*Bet),
	}
}

// KellyStake sizes a wager with fractional Kelly: f = (b*p - q) / b with
// b = price - 1, q = 1 - p, scaled by the Kelly fraction and capped at
// MaxExposurePct of the current bankroll. Returns 0 for price <= 1, a
// probability outside (0,1), or a non-positive full-Kelly fraction.
func (g *Gate) KellyStake(winProbability, price float64) decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if price <= 1.0 || winProbability <= 0 || winProbability >= 1 {
		return decimal.Zero
	}
	b := price - 1
	full := (b*winProbability - (1 - winProbability)) / b
	if full <= 0 {
		return decimal.Zero
	}

	stake := decimal.NewFromFloat(full * g.cfg.KellyFraction).Mul(g.bankroll)
	maxStake := g.bankroll.Mul(decimal.NewFromFloat(g.cfg.MaxExposurePct))
	if stake.GreaterThan(maxStake) {
		stake = maxStake
	}
	return stake.Round(2)
}

// CheckStopLoss reports whether the daily loss limit is breached. The
// first breach flips the gate into cool-down as a side effect; once
// cooling down it keeps reporting true until ResetDailyLimits.
func (g *Gate) CheckStopLoss() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkStopLossLocked()
}

func (g *Gate) checkStopLossLocked() bool {
	if g.coolingDown {
		return true
	}
	limit := g.bankroll.Mul(decimal.NewFromFloat(g.cfg.MaxDailyLossPct))
	if g.dailyPnL.LessThanOrEqual(limit.Neg()) {
		g.coolingDown = true
		g.log.Warn("stop-loss triggered, cool-down active",
			zap.String("daily_pnl", g.dailyPnL.String()),
			zap.String("limit", limit.String()))
		return true
	}
	return false
}

// ResetDailyLimits zeroes the daily P&L and clears the cool-down. Run once
// at the start of each trading day before any sizing.
func (g *Gate) ResetDailyLimits() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnL = decimal.Zero
	g.coolingDown = false
	g.log.Info("daily limits reset")
}

// CoolingDown reports whether the gate is in cool-down.
func (g *Gate) CoolingDown() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.coolingDown
}

// Bankroll returns the current bankroll.
func (g *Gate) Bankroll() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bankroll
}

// DailyPnL returns the cumulative signed P&L since the last daily reset.
func (g *Gate) DailyPnL() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dailyPnL
}

// GetExposure aggregates open stake across pending bets.
func (g *Gate) GetExposure() Exposure {
	g.mu.RLock()
	defer g.mu.RUnlock()

	exp := Exposure{
		TotalOpenStake: decimal.Zero,
		ByBroker:       make(map[string]decimal.Decimal),
		BySport:        make(map[string]decimal.Decimal),
	}
	for _, b := range g.bets {
		if b.Status != StatusPending {
			continue
		}
		exp.TotalOpenStake = exp.TotalOpenStake.Add(b.Stake)
		exp.OpenBetCount++
		exp.ByBroker[b.Broker] = exp.ByBroker[b.Broker].Add(b.Stake)
		exp.BySport[b.Sport] = exp.BySport[b.Sport].Add(b.Stake)
	}
	if g.bankroll.IsPositive() {
		pct, _ := exp.TotalOpenStake.Div(g.bankroll).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		exp.ExposurePct = pct
	}
	return exp
}

// RecordBet appends a pending bet to the audit trail. The stake is the
// amount actually placed, which may differ from the candidate's sizing
// hint when the bankroll moved between composition and placement.
func (g *Gate) RecordBet(cand *parlay.Candidate, stake decimal.Decimal, confirmationID, broker string) *Bet {
	g.mu.Lock()
	defer g.mu.Unlock()

	legs := make([]parlay.Leg, len(cand.Legs))
	copy(legs, cand.Legs)

	bet := &Bet{
		ID:             uuid.New().String(),
		ConfirmationID: confirmationID,
		Broker:         broker,
		Sport:          cand.Sport,
		Legs:           legs,
		Stake:          stake,
		Price:          cand.CombinedPrice,
		ExpectedValue:  cand.ExpectedValue,
		Status:         StatusPending,
		PlacedAt:       time.Now().UTC(),
	}
	g.bets[bet.ID] = bet
	g.log.Info("bet recorded",
		zap.String("id", bet.ID),
		zap.String("confirmation_id", confirmationID),
		zap.String("broker", broker),
		zap.String("sport", bet.Sport),
		zap.String("stake", stake.String()))
	return bet
}

// PendingBets returns all bets that have not yet been settled.
func (g *Gate) PendingBets() []*Bet {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Bet
	for _, b := range g.bets {
		if b.Status == StatusPending {
			out = append(out, b)
		}
	}
	return out
}

// SettleBet applies a settlement outcome to a bet. Won bets credit
// stake*(price-1) to bankroll and daily P&L; lost bets debit the stake and
// re-evaluate the stop-loss; void bets leave P&L untouched. Status and the
// settlement timestamp are updated on every branch.
func (g *Gate) SettleBet(betID string, result Result) (*Bet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	bet, ok := g.bets[betID]
	if !ok {
		return nil, ErrBetNotFound
	}

	bet.Status = BetStatus(result)
	bet.SettledAt = time.Now().UTC()

	switch result {
	case ResultWon:
		profit := bet.Stake.Mul(decimal.NewFromFloat(bet.Price - 1)).Round(2)
		g.bankroll = g.bankroll.Add(profit)
		g.dailyPnL = g.dailyPnL.Add(profit)
		g.log.Info("bet won",
			zap.String("id", bet.ID),
			zap.String("profit", profit.String()),
			zap.String("bankroll", g.bankroll.String()))
	case ResultLost:
		g.bankroll = g.bankroll.Sub(bet.Stake)
		g.dailyPnL = g.dailyPnL.Sub(bet.Stake)
		g.log.Info("bet lost",
			zap.String("id", bet.ID),
			zap.String("stake", bet.Stake.String()),
			zap.String("bankroll", g.bankroll.String()))
		// A loss can push daily P&L through the stop-loss threshold.
		g.checkStopLossLocked()
	default:
		g.log.Info("bet settled without P&L change",
			zap.String("id", bet.ID),
			zap.String("result", string(result)))
	}
	return bet, nil
}
