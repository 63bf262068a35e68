// Package circadian adjusts wager edge estimates for game-time fatigue,
// schedule congestion, and travel effects.
package circadian

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Local-hour boundaries. Hours 14-20 inclusive are the optimal performance
// window; 21:00 and later carries a fatigue penalty. The two never overlap.
const (
	optimalHourStart = 14
	optimalHourEnd   = 20
	lateNightHour    = 21

	// Eastward shifts above this many hours are penalized; westward shifts
	// below the negative of it earn a small bonus.
	travelShiftThreshold = 1.5

	eastwardPenaltyCap = 0.20
	westwardBonusCap   = 0.05
)

// Config holds the adjustment magnitudes. All factors are multiplicative on
// the edge estimate: a penalty of 0.05 removes 5% of the edge.
type Config struct {
	LateNightPenalty   float64  // Default: 0.05
	BackToBackPenalty  float64  // Default: 0.08 (home side pays half)
	TravelShiftPenalty float64  // Default: 0.04 per hour of eastward shift
	OptimalWindowBonus float64  // Default: 0.02
	SensitiveSports    []string // Default: NBA, NHL, NFL, NCAAMB
}

// DefaultConfig returns the standard adjustment magnitudes.
func DefaultConfig() *Config {
	return &Config{
		LateNightPenalty:   0.05,
		BackToBackPenalty:  0.08,
		TravelShiftPenalty: 0.04,
		OptimalWindowBonus: 0.02,
		SensitiveSports:    []string{"NBA", "NHL", "NFL", "NCAAMB"},
	}
}

// GameContext carries the schedule inputs for one game.
type GameContext struct {
	GameTimeUTC    time.Time
	HomeTZOffset   float64 // UTC offset in hours of the home venue (e.g. -5 for EST)
	AwayTZOffset   float64 // UTC offset in hours of the away team's home city
	Sport          string
	AwayBackToBack bool // away team played the previous night
	HomeBackToBack bool // home team played the previous night
}

// HomeLocalHour returns the game's local start hour at the home venue.
func (g GameContext) HomeLocalHour() int {
	utcHour := float64(g.GameTimeUTC.Hour()) + float64(g.GameTimeUTC.Minute())/60
	h := math.Mod(utcHour+g.HomeTZOffset, 24)
	if h < 0 {
		h += 24
	}
	return int(h)
}

// AwayTravelShift returns the hours the away team's body clock is shifted
// from the home timezone. Positive = eastward travel (more disruptive).
func (g GameContext) AwayTravelShift() float64 {
	return g.HomeTZOffset - g.AwayTZOffset
}

// Adjustment is a multiplicative edge correction derived from a GameContext.
// Factor is applied as adjusted = raw * (1 + Factor); it stays in (-1, +1).
type Adjustment struct {
	Factor  float64
	Reasons []string
}

// Apply scales rawEdge by (1 + Factor), floored at zero.
func (a Adjustment) Apply(rawEdge float64) float64 {
	return math.Max(0, rawEdge*(1+a.Factor))
}

// Model computes circadian adjustments for game contexts. It is pure and
// deterministic; the same context always yields the same adjustment.
type Model struct {
	cfg       *Config
	sensitive map[string]struct{}
}

// NewModel creates a model, filling unset config fields with defaults.
func NewModel(cfg *Config) *Model {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defaults := DefaultConfig()
	if cfg.LateNightPenalty == 0 {
		cfg.LateNightPenalty = defaults.LateNightPenalty
	}
	if cfg.BackToBackPenalty == 0 {
		cfg.BackToBackPenalty = defaults.BackToBackPenalty
	}
	if cfg.TravelShiftPenalty == 0 {
		cfg.TravelShiftPenalty = defaults.TravelShiftPenalty
	}
	if cfg.OptimalWindowBonus == 0 {
		cfg.OptimalWindowBonus = defaults.OptimalWindowBonus
	}
	if len(cfg.SensitiveSports) == 0 {
		cfg.SensitiveSports = defaults.SensitiveSports
	}

	sensitive := make(map[string]struct{}, len(cfg.SensitiveSports))
	for _, s := range cfg.SensitiveSports {
		sensitive[strings.ToUpper(s)] = struct{}{}
	}
	return &Model{cfg: cfg, sensitive: sensitive}
}

// Compute derives the combined circadian factor for a game. One reason
// string is collected per triggered rule.
func (m *Model) Compute(ctx GameContext) Adjustment {
	if _, ok := m.sensitive[strings.ToUpper(ctx.Sport)]; !ok {
		return Adjustment{Factor: 0, Reasons: []string{"sport not circadian-sensitive"}}
	}

	factor := 0.0
	var reasons []string

	hour := ctx.HomeLocalHour()
	switch {
	case hour >= lateNightHour:
		factor -= m.cfg.LateNightPenalty
		reasons = append(reasons, fmt.Sprintf("late-night game (local hour %d) -%.0f%%", hour, m.cfg.LateNightPenalty*100))
	case hour >= optimalHourStart && hour <= optimalHourEnd:
		factor += m.cfg.OptimalWindowBonus
		reasons = append(reasons, fmt.Sprintf("optimal start hour (%d:00) +%.0f%%", hour, m.cfg.OptimalWindowBonus*100))
	}

	if ctx.AwayBackToBack {
		factor -= m.cfg.BackToBackPenalty
		reasons = append(reasons, fmt.Sprintf("away team back-to-back -%.0f%%", m.cfg.BackToBackPenalty*100))
	}
	if ctx.HomeBackToBack {
		// Home court partially offsets the fatigue.
		half := m.cfg.BackToBackPenalty / 2
		factor -= half
		reasons = append(reasons, fmt.Sprintf("home team back-to-back -%.1f%%", half*100))
	}

	shift := ctx.AwayTravelShift()
	if shift > travelShiftThreshold {
		penalty := math.Min(shift*m.cfg.TravelShiftPenalty, eastwardPenaltyCap)
		factor -= penalty
		reasons = append(reasons, fmt.Sprintf("away team eastward shift %.1fh -%.0f%%", shift, penalty*100))
	} else if shift < -travelShiftThreshold {
		bonus := math.Min(math.Abs(shift)*m.cfg.TravelShiftPenalty/2, westwardBonusCap)
		factor += bonus
		reasons = append(reasons, fmt.Sprintf("away team westward shift %.1fh +%.0f%%", math.Abs(shift), bonus*100))
	}

	return Adjustment{Factor: round4(factor), Reasons: reasons}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
