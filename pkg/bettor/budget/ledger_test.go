package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

func TestPeriodBounds(t *testing.T) {
	tests := []struct {
		name      string
		period    Period
		ref       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "daily is the reference day",
			period:    PeriodDaily,
			ref:       time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC),
			wantStart: "2024-03-06", wantEnd: "2024-03-06",
		},
		{
			name:      "weekly runs Monday through Sunday",
			period:    PeriodWeekly,
			ref:       time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), // a Wednesday
			wantStart: "2024-03-04", wantEnd: "2024-03-10",
		},
		{
			name:      "weekly from a Sunday stays in the same week",
			period:    PeriodWeekly,
			ref:       time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			wantStart: "2024-03-04", wantEnd: "2024-03-10",
		},
		{
			name:      "monthly spans the calendar month",
			period:    PeriodMonthly,
			ref:       time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			wantStart: "2024-02-01", wantEnd: "2024-02-29",
		},
		{
			name:      "monthly across a year boundary",
			period:    PeriodMonthly,
			ref:       time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC),
			wantStart: "2023-12-01", wantEnd: "2023-12-31",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.Start(tt.ref).Format("2006-01-02"); got != tt.wantStart {
				t.Errorf("Start = %s, want %s", got, tt.wantStart)
			}
			if got := tt.period.End(tt.ref).Format("2006-01-02"); got != tt.wantEnd {
				t.Errorf("End = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestConfigure_RejectsNonPositiveLimit(t *testing.T) {
	l := NewLedger(nil)
	if err := l.Configure(PeriodDaily, d(0), nil); err == nil {
		t.Error("Configure with zero limit succeeded, want error")
	}
	if err := l.Configure(PeriodDaily, d(-10), nil); err == nil {
		t.Error("Configure with negative limit succeeded, want error")
	}
	if err := l.Configure(Period("hourly"), d(10), nil); err == nil {
		t.Error("Configure with unknown period succeeded, want error")
	}
}

func TestRecordSpend_RejectsNonPositiveAmount(t *testing.T) {
	l := NewLedger(nil)
	if _, err := l.RecordSpend("bet-1", d(0), "NBA", "voltaire", time.Time{}); err == nil {
		t.Error("RecordSpend with zero amount succeeded, want error")
	}
	if _, err := l.RecordSpend("bet-1", d(-5), "NBA", "voltaire", time.Time{}); err == nil {
		t.Error("RecordSpend with negative amount succeeded, want error")
	}
}

func TestRemaining_FloorsAtZero(t *testing.T) {
	l := NewLedger(nil)
	ref := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	if err := l.Configure(PeriodDaily, d(50), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := l.RecordSpend("bet-1", d(80), "NBA", "voltaire", ref); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}

	remaining, bounded := l.Remaining(PeriodDaily, "", ref)
	if !bounded {
		t.Fatal("Remaining reported unbounded for a configured period")
	}
	if !remaining.IsZero() {
		t.Errorf("Remaining = %v, want 0 (never negative)", remaining)
	}
	if l.CanSpend(d(1), "", ref) {
		t.Error("CanSpend(1) = true with the daily budget already blown")
	}
}

func TestRemaining_UnconfiguredPeriodIsUnbounded(t *testing.T) {
	l := NewLedger(nil)
	if err := l.Configure(PeriodDaily, d(50), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, bounded := l.Remaining(PeriodWeekly, "", time.Time{}); bounded {
		t.Error("Remaining for an unconfigured period reported bounded")
	}
}

func TestCanSpend_UnbudgetedModeAllowsEverything(t *testing.T) {
	l := NewLedger(nil)
	if !l.CanSpend(d(1_000_000), "NBA", time.Time{}) {
		t.Error("CanSpend = false with no budgets configured")
	}
}

func TestCanSpend_SingleBreachedPeriodVetoes(t *testing.T) {
	l := NewLedger(nil)
	ref := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	if err := l.Configure(PeriodDaily, d(100), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := l.Configure(PeriodWeekly, d(120), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	// Spend earlier in the same week but on a different day: only the
	// weekly window sees it.
	if _, err := l.RecordSpend("bet-1", d(90), "NBA", "voltaire", ref.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}

	if !l.CanSpend(d(30), "", ref) {
		t.Error("CanSpend(30) = false, want true (daily 100 free, weekly 30 left)")
	}
	if l.CanSpend(d(50), "", ref) {
		t.Error("CanSpend(50) = true, want false (weekly limit vetoes despite daily headroom)")
	}
}

func TestCategorySubLimits(t *testing.T) {
	l := NewLedger(nil)
	ref := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	err := l.Configure(PeriodDaily, d(200), map[string]decimal.Decimal{"NBA": d(50)})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := l.RecordSpend("bet-1", d(40), "nba", "voltaire", ref); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}

	// Category matching is case-insensitive in both directions.
	remaining, _ := l.Remaining(PeriodDaily, "nBa", ref)
	if !remaining.Equal(d(10)) {
		t.Errorf("Remaining(NBA) = %v, want 10 against the sub-limit", remaining)
	}

	// Other categories run against the global limit; the NBA spend still
	// counts toward global consumption only when unfiltered.
	remaining, _ = l.Remaining(PeriodDaily, "NHL", ref)
	if !remaining.Equal(d(200)) {
		t.Errorf("Remaining(NHL) = %v, want 200 (no NHL spend yet)", remaining)
	}

	if l.CanSpend(d(20), "NBA", ref) {
		t.Error("CanSpend(20, NBA) = true, want false against the 50 sub-limit")
	}
	if !l.CanSpend(d(20), "NHL", ref) {
		t.Error("CanSpend(20, NHL) = false, want true")
	}
}

func TestSpentInPeriod_WindowsAndFilters(t *testing.T) {
	l := NewLedger(nil)
	ref := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	if err := l.Configure(PeriodWeekly, d(500), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	spends := []struct {
		amount int64
		sport  string
		at     time.Time
	}{
		{100, "NBA", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},  // Monday, in window
		{50, "NHL", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)},  // Sunday, in window
		{999, "NBA", time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC)}, // previous week
	}
	for i, s := range spends {
		if _, err := l.RecordSpend("bet", d(s.amount), s.sport, "voltaire", s.at); err != nil {
			t.Fatalf("RecordSpend %d: %v", i, err)
		}
	}

	if got := l.SpentInPeriod(PeriodWeekly, "", ref); !got.Equal(d(150)) {
		t.Errorf("SpentInPeriod = %v, want 150", got)
	}
	if got := l.SpentInPeriod(PeriodWeekly, "NBA", ref); !got.Equal(d(100)) {
		t.Errorf("SpentInPeriod(NBA) = %v, want 100", got)
	}
	if got := l.SpentInPeriod(PeriodDaily, "", ref); !got.IsZero() {
		t.Errorf("SpentInPeriod for unconfigured period = %v, want 0", got)
	}
}

func TestSummary(t *testing.T) {
	l := NewLedger(nil)
	ref := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	if err := l.Configure(PeriodDaily, d(100), nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := l.RecordSpend("bet-1", d(25), "NBA", "voltaire", ref); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}

	sum := l.Summary(ref)
	daily, ok := sum[PeriodDaily]
	if !ok {
		t.Fatal("Summary missing configured daily period")
	}
	if !daily.Spent.Equal(d(25)) || !daily.Remaining.Equal(d(75)) {
		t.Errorf("daily summary spent/remaining = %v/%v, want 25/75", daily.Spent, daily.Remaining)
	}
	if daily.UtilisationPct != 25 {
		t.Errorf("UtilisationPct = %v, want 25", daily.UtilisationPct)
	}
	if got := daily.PeriodStart.Format("2006-01-02"); got != "2024-03-06" {
		t.Errorf("PeriodStart = %s, want 2024-03-06", got)
	}
}
