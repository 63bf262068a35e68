package parlay

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// OptimizerConfig bounds the combinatorial search. Enumeration cost grows
// as C(poolSize, maxLegs), so keep MaxLegs in the small single digits and
// the pool in the low hundreds.
type OptimizerConfig struct {
	MinEdge float64 // Default: 0.05 minimum adjusted EV per unit stake
	MaxLegs int     // Default: 3
	TopN    int     // Default: 5
}

// DefaultOptimizerConfig returns the standard search bounds.
func DefaultOptimizerConfig() *OptimizerConfig {
	return &OptimizerConfig{MinEdge: 0.05, MaxLegs: 3, TopN: 5}
}

// Optimizer enumerates leg combinations and ranks the resulting candidates.
type Optimizer struct {
	cfg      *OptimizerConfig
	composer *Composer
	log      *zap.Logger
}

// NewOptimizer creates an optimizer around a composer.
func NewOptimizer(cfg *OptimizerConfig, composer *Composer, log *zap.Logger) *Optimizer {
	if cfg == nil {
		cfg = DefaultOptimizerConfig()
	}
	defaults := DefaultOptimizerConfig()
	if cfg.MinEdge == 0 {
		cfg.MinEdge = defaults.MinEdge
	}
	if cfg.MaxLegs == 0 {
		cfg.MaxLegs = defaults.MaxLegs
	}
	if cfg.TopN == 0 {
		cfg.TopN = defaults.TopN
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{cfg: cfg, composer: composer, log: log}
}

// Generate builds every combination of 1..MaxLegs legs per requested sport,
// keeps candidates with ExpectedValue >= MinEdge and a positive recommended
// stake, and returns the top N by EV (ties broken by lower combined price,
// preferring lower variance). A single malformed leg never aborts the
// batch: failed builds are skipped.
func (o *Optimizer) Generate(pool []Leg, sports []string) []*Candidate {
	var out []*Candidate
	for _, sport := range sports {
		filtered := filterBySport(pool, sport)
		if len(filtered) == 0 {
			continue
		}
		for n := 1; n <= o.cfg.MaxLegs && n <= len(filtered); n++ {
			combinations(len(filtered), n, func(idx []int) {
				legs := make([]Leg, n)
				for i, j := range idx {
					legs[i] = filtered[j]
				}
				cand, err := o.composer.Build(legs, sport)
				if err != nil {
					o.log.Debug("skipping combination",
						zap.String("sport", sport),
						zap.Error(err))
					return
				}
				if cand.ExpectedValue < o.cfg.MinEdge || !cand.RecommendedStake.IsPositive() {
					return
				}
				out = append(out, cand)
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpectedValue != out[j].ExpectedValue {
			return out[i].ExpectedValue > out[j].ExpectedValue
		}
		return out[i].CombinedPrice < out[j].CombinedPrice
	})

	if len(out) > o.cfg.TopN {
		out = out[:o.cfg.TopN]
	}
	return out
}

func filterBySport(pool []Leg, sport string) []Leg {
	var out []Leg
	for _, leg := range pool {
		if legSport(leg) == "" || strings.EqualFold(legSport(leg), sport) {
			out = append(out, leg)
		}
	}
	return out
}

// legSport reads the sport off the leg's game context; legs without a
// context belong to every requested sport.
func legSport(leg Leg) string {
	if leg.Context == nil {
		return ""
	}
	return leg.Context.Sport
}

// combinations visits every size-k index combination of [0,n) in
// lexicographic order.
func combinations(n, k int, visit func([]int)) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		visit(idx)
		// Advance to the next combination.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
