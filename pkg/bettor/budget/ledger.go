// Package budget tracks wager spend against daily, weekly, and monthly
// limits, globally and per category, and vetoes spends that would breach
// any configured period.
package budget

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Period is the granularity of a budget cycle.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Periods lists all granularities in ascending length, for display.
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}
}

func (p Period) valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Start returns the first day of the period containing ref: the day itself
// for daily, the Monday of its week for weekly, the first of its month for
// monthly. Times are truncated to dates in UTC.
func (p Period) Start(ref time.Time) time.Time {
	d := dateOf(ref)
	switch p {
	case PeriodWeekly:
		// Monday-based week.
		back := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -back)
	case PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// End returns the last day of the period containing ref, inclusive.
func (p Period) End(ref time.Time) time.Time {
	start := p.Start(ref)
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 6)
	case PeriodMonthly:
		return start.AddDate(0, 1, -1)
	default:
		return start
	}
}

// Budget is the configured constraint for one period granularity.
type Budget struct {
	Period         Period
	Limit          decimal.Decimal
	CategoryLimits map[string]decimal.Decimal // optional per-category sub-limits
}

// Entry is an immutable spend record in the append-only log.
type Entry struct {
	ID        string
	RefID     string // bet id this spend belongs to
	Amount    decimal.Decimal
	Category  string // sport
	Source    string // sportsbook
	Timestamp time.Time
}

// PeriodSummary reports one period's budget position for display.
type PeriodSummary struct {
	Limit          decimal.Decimal
	Spent          decimal.Decimal
	Remaining      decimal.Decimal
	UtilisationPct float64
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CategoryLimits map[string]decimal.Decimal
}

// Ledger tracks spending against configured budgets. All period and "now"
// computations take an explicit reference time; the zero time means now.
type Ledger struct {
	log *zap.Logger

	mu      sync.RWMutex
	budgets map[Period]Budget
	entries []Entry
}

// NewLedger creates an empty ledger with no budgets configured.
func NewLedger(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		log:     log,
		budgets: make(map[Period]Budget),
	}
}

// Configure sets or replaces the budget for a period.
func (l *Ledger) Configure(period Period, limit decimal.Decimal, categoryLimits map[string]decimal.Decimal) error {
	if !period.valid() {
		return fmt.Errorf("budget: unknown period %q", period)
	}
	if !limit.IsPositive() {
		return fmt.Errorf("budget: limit must be positive, got %s", limit)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limits := make(map[string]decimal.Decimal, len(categoryLimits))
	for k, v := range categoryLimits {
		limits[k] = v
	}
	l.budgets[period] = Budget{Period: period, Limit: limit, CategoryLimits: limits}
	l.log.Info("budget configured",
		zap.String("period", string(period)),
		zap.String("limit", limit.String()),
		zap.Int("category_limits", len(limits)))
	return nil
}

// RecordSpend appends a spend entry. A zero `at` defaults to now.
func (l *Ledger) RecordSpend(refID string, amount decimal.Decimal, category, source string, at time.Time) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, fmt.Errorf("budget: spend amount must be positive, got %s", amount)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	entry := Entry{
		ID:        uuid.New().String(),
		RefID:     refID,
		Amount:    amount,
		Category:  category,
		Source:    source,
		Timestamp: at,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.log.Info("spend recorded",
		zap.String("ref_id", refID),
		zap.String("amount", amount.String()),
		zap.String("category", category),
		zap.String("source", source))
	return entry, nil
}

// SpentInPeriod sums entries dated inside the period containing ref
// (zero = today), optionally filtered to one category (case-insensitive).
// Returns 0 when the period is not configured.
func (l *Ledger) SpentInPeriod(period Period, category string, ref time.Time) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.spentLocked(period, category, ref)
}

func (l *Ledger) spentLocked(period Period, category string, ref time.Time) decimal.Decimal {
	if _, ok := l.budgets[period]; !ok {
		return decimal.Zero
	}
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	start := period.Start(ref)
	end := period.End(ref)

	total := decimal.Zero
	for _, e := range l.entries {
		d := dateOf(e.Timestamp)
		if d.Before(start) || d.After(end) {
			continue
		}
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining returns the budget left for a period, floored at zero. The
// applicable limit is the category sub-limit when one is configured for
// that category (case-insensitive), else the period's global limit. The
// second return is false when the period itself is unconfigured, meaning
// the amount is unbounded.
func (l *Ledger) Remaining(period Period, category string, ref time.Time) (decimal.Decimal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remainingLocked(period, category, ref)
}

func (l *Ledger) remainingLocked(period Period, category string, ref time.Time) (decimal.Decimal, bool) {
	b, ok := l.budgets[period]
	if !ok {
		return decimal.Zero, false
	}

	limit := b.Limit
	if category != "" {
		for k, v := range b.CategoryLimits {
			if strings.EqualFold(k, category) {
				limit = v
				break
			}
		}
	}

	spent := l.spentLocked(period, category, ref)
	remaining := limit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, true
}

// CanSpend reports whether amount fits inside every configured period
// simultaneously; a single breached period vetoes the spend. With no
// budgets configured at all the ledger is in unbudgeted mode and always
// allows.
func (l *Ledger) CanSpend(amount decimal.Decimal, category string, ref time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.budgets) == 0 {
		return true
	}
	for period := range l.budgets {
		remaining, bounded := l.remainingLocked(period, category, ref)
		if !bounded {
			continue
		}
		if amount.GreaterThan(remaining) {
			l.log.Warn("budget veto",
				zap.String("period", string(period)),
				zap.String("remaining", remaining.String()),
				zap.String("requested", amount.String()),
				zap.String("category", category))
			return false
		}
	}
	return true
}

// Summary reports limit/spent/remaining/utilisation and period bounds for
// every configured period as of ref (zero = today).
func (l *Ledger) Summary(ref time.Time) map[Period]PeriodSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	out := make(map[Period]PeriodSummary, len(l.budgets))
	for period, b := range l.budgets {
		spent := l.spentLocked(period, "", ref)
		remaining := b.Limit.Sub(spent)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		util := 0.0
		if b.Limit.IsPositive() {
			util, _ = spent.Div(b.Limit).Mul(decimal.NewFromInt(100)).Round(1).Float64()
		}
		out[period] = PeriodSummary{
			Limit:          b.Limit,
			Spent:          spent,
			Remaining:      remaining,
			UtilisationPct: util,
			PeriodStart:    period.Start(ref),
			PeriodEnd:      period.End(ref),
			CategoryLimits: b.CategoryLimits,
		}
	}
	return out
}

// Configured reports whether any budget period is set.
func (l *Ledger) Configured() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.budgets) > 0
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
