// Package parlay builds and ranks candidate parlay wagers from a pool of
// individual legs.
package parlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mwhitcomb/parlayd/pkg/bettor/circadian"
)

// ErrNoLegs is returned when a candidate is built from an empty leg set.
var ErrNoLegs = errors.New("parlay: no legs provided")

// Leg is one selection inside a parlay. Legs are immutable once constructed
// and owned by the pool that supplies them.
type Leg struct {
	EventID        string
	Selection      string
	Price          float64 // decimal odds, must be > 1.0
	WinProbability float64 // estimated win probability in (0,1]; 0 = unknown
	Context        *circadian.GameContext
}

// Candidate is a fully priced parlay. ExpectedValue is the per-unit-stake
// EV after circadian adjustment; RecommendedStake is a fractional-Kelly
// sizing hint capped by the exposure limit.
type Candidate struct {
	ID                     string
	Sport                  string
	Legs                   []Leg
	CombinedPrice          float64
	CombinedWinProbability float64
	ExpectedValue          float64
	RecommendedStake       decimal.Decimal
	AdjustmentReasons      []string
}

// ComposerConfig carries the sizing inputs for candidate construction.
type ComposerConfig struct {
	Bankroll       decimal.Decimal // Default: 1000
	KellyFraction  float64         // Default: 0.25
	MaxExposurePct float64         // Default: 0.20 of bankroll per wager
}

// DefaultComposerConfig returns conservative sizing defaults.
func DefaultComposerConfig() *ComposerConfig {
	return &ComposerConfig{
		Bankroll:       decimal.NewFromInt(1000),
		KellyFraction:  0.25,
		MaxExposurePct: 0.20,
	}
}

// Composer combines legs into priced candidates.
type Composer struct {
	cfg   *ComposerConfig
	model *circadian.Model
}

// NewComposer creates a composer. A nil model disables circadian
// adjustment; nil or zero config fields fall back to defaults.
func NewComposer(cfg *ComposerConfig, model *circadian.Model) *Composer {
	if cfg == nil {
		cfg = DefaultComposerConfig()
	}
	defaults := DefaultComposerConfig()
	if cfg.Bankroll.IsZero() {
		cfg.Bankroll = defaults.Bankroll
	}
	if cfg.KellyFraction == 0 {
		cfg.KellyFraction = defaults.KellyFraction
	}
	if cfg.MaxExposurePct == 0 {
		cfg.MaxExposurePct = defaults.MaxExposurePct
	}
	return &Composer{cfg: cfg, model: model}
}

// Build combines legs into a candidate.
//
// The combined win probability multiplies only legs whose probability is
// known (> 0); when no leg carries a probability it is 0 and sizing yields
// a zero stake. Circadian adjustments are applied sequentially per leg onto
// the running EV, so multiple disrupted legs compound.
func (c *Composer) Build(legs []Leg, sport string) (*Candidate, error) {
	if len(legs) == 0 {
		return nil, ErrNoLegs
	}

	combinedPrice := 1.0
	combinedProb := 1.0
	anyProb := false
	for _, leg := range legs {
		if leg.Price <= 1.0 {
			return nil, fmt.Errorf("parlay: leg %s price %.4f must be above 1.0", leg.EventID, leg.Price)
		}
		combinedPrice *= leg.Price
		if leg.WinProbability > 0 {
			combinedProb *= leg.WinProbability
			anyProb = true
		}
	}
	if !anyProb {
		combinedProb = 0
	}

	ev := combinedProb*(combinedPrice-1) - (1 - combinedProb)

	var reasons []string
	if c.model != nil {
		for _, leg := range legs {
			if leg.Context == nil {
				continue
			}
			adj := c.model.Compute(*leg.Context)
			ev = adj.Apply(ev)
			reasons = append(reasons, adj.Reasons...)
		}
	}

	return &Candidate{
		ID:                     uuid.New().String(),
		Sport:                  sport,
		Legs:                   legs,
		CombinedPrice:          round4(combinedPrice),
		CombinedWinProbability: round4(combinedProb),
		ExpectedValue:          round4(ev),
		RecommendedStake:       c.kellyStake(combinedProb, combinedPrice),
		AdjustmentReasons:      reasons,
	}, nil
}

// kellyStake sizes a wager with the fractional Kelly criterion:
// f = (b*p - q) / b with b = price - 1, q = 1 - p, scaled by the Kelly
// fraction and capped at MaxExposurePct of bankroll.
func (c *Composer) kellyStake(p, price float64) decimal.Decimal {
	if price <= 1.0 || p <= 0 || p >= 1 {
		return decimal.Zero
	}
	b := price - 1
	full := (b*p - (1 - p)) / b
	if full <= 0 {
		return decimal.Zero
	}

	stake := decimal.NewFromFloat(full * c.cfg.KellyFraction).Mul(c.cfg.Bankroll)
	maxStake := c.cfg.Bankroll.Mul(decimal.NewFromFloat(c.cfg.MaxExposurePct))
	if stake.GreaterThan(maxStake) {
		stake = maxStake
	}
	return stake.Round(2)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
