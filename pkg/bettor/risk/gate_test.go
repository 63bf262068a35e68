package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

func newTestGate() *Gate {
	return NewGate(&Config{
		Bankroll:        decimal.NewFromInt(1000),
		MaxDailyLossPct: 0.10,
		MaxExposurePct:  0.20,
		KellyFraction:   0.25,
	}, nil)
}

func testCandidate(sport string, price, prob float64) *parlay.Candidate {
	return &parlay.Candidate{
		ID:                     "cand-1",
		Sport:                  sport,
		Legs:                   []parlay.Leg{{EventID: "e1", Price: price, WinProbability: prob}},
		CombinedPrice:          price,
		CombinedWinProbability: prob,
		ExpectedValue:          prob*(price-1) - (1 - prob),
	}
}

func TestKellyStake_ZeroCases(t *testing.T) {
	g := newTestGate()

	tests := []struct {
		name  string
		prob  float64
		price float64
	}{
		{"price at 1", 0.6, 1.0},
		{"price below 1", 0.6, 0.95},
		{"probability 0", 0, 2.0},
		{"probability 1", 1, 2.0},
		{"negative edge", 0.40, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.KellyStake(tt.prob, tt.price); !got.IsZero() {
				t.Errorf("KellyStake(%v, %v) = %v, want 0", tt.prob, tt.price, got)
			}
		})
	}
}

func TestKellyStake_FractionalSizing(t *testing.T) {
	g := newTestGate()

	// b = 1, full Kelly = (0.6 - 0.4) / 1 = 0.20; quarter Kelly on 1000 = 50.
	got := g.KellyStake(0.6, 2.0)
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("KellyStake(0.6, 2.0) = %v, want 50", got)
	}
}

func TestKellyStake_CappedAtMaxExposure(t *testing.T) {
	g := NewGate(&Config{
		Bankroll:        decimal.NewFromInt(1000),
		MaxDailyLossPct: 0.10,
		MaxExposurePct:  0.05,
		KellyFraction:   1.0,
	}, nil)

	// Full Kelly would stake 866.67; the 5% exposure cap holds it at 50.
	got := g.KellyStake(0.9, 4.0)
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("KellyStake = %v, want 50 (exposure cap)", got)
	}
}

func TestSettleBet_Won(t *testing.T) {
	g := newTestGate()
	bet := g.RecordBet(testCandidate("NBA", 2.5, 0.5), decimal.NewFromInt(100), "VL-1", "voltaire")

	settled, err := g.SettleBet(bet.ID, ResultWon)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if settled.Status != StatusWon {
		t.Errorf("Status = %v, want won", settled.Status)
	}
	if settled.SettledAt.IsZero() {
		t.Error("SettledAt not set")
	}
	// Profit = 100 * (2.5 - 1) = 150.
	if want := decimal.NewFromInt(1150); !g.Bankroll().Equal(want) {
		t.Errorf("Bankroll = %v, want %v", g.Bankroll(), want)
	}
	if want := decimal.NewFromInt(150); !g.DailyPnL().Equal(want) {
		t.Errorf("DailyPnL = %v, want %v", g.DailyPnL(), want)
	}
}

func TestSettleBet_Lost(t *testing.T) {
	g := newTestGate()
	bet := g.RecordBet(testCandidate("NBA", 2.5, 0.5), decimal.NewFromInt(80), "VL-1", "voltaire")

	if _, err := g.SettleBet(bet.ID, ResultLost); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if want := decimal.NewFromInt(920); !g.Bankroll().Equal(want) {
		t.Errorf("Bankroll = %v, want %v", g.Bankroll(), want)
	}
}

func TestSettleBet_VoidLeavesBankroll(t *testing.T) {
	g := newTestGate()
	bet := g.RecordBet(testCandidate("NBA", 2.5, 0.5), decimal.NewFromInt(80), "VL-1", "voltaire")

	settled, err := g.SettleBet(bet.ID, ResultVoid)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if settled.Status != StatusVoid || settled.SettledAt.IsZero() {
		t.Errorf("void settlement must still update status and timestamp, got %+v", settled)
	}
	if want := decimal.NewFromInt(1000); !g.Bankroll().Equal(want) {
		t.Errorf("Bankroll = %v, want unchanged %v", g.Bankroll(), want)
	}
}

func TestSettleBet_UnknownID(t *testing.T) {
	g := newTestGate()
	if _, err := g.SettleBet("no-such-bet", ResultWon); !errors.Is(err, ErrBetNotFound) {
		t.Errorf("SettleBet error = %v, want ErrBetNotFound", err)
	}
}

func TestStopLoss_TriggeredByLosses(t *testing.T) {
	g := newTestGate()

	// Bankroll 1000, max daily loss 10%: a 150 loss breaches the limit.
	bet := g.RecordBet(testCandidate("NBA", 3.0, 0.4), decimal.NewFromInt(150), "VL-1", "voltaire")
	if g.CheckStopLoss() {
		t.Fatal("stop-loss breached before any loss")
	}
	if _, err := g.SettleBet(bet.ID, ResultLost); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}

	// The losing settlement re-evaluates the stop-loss itself.
	if !g.CoolingDown() {
		t.Error("gate not cooling down after breaching loss")
	}
	if !g.CheckStopLoss() {
		t.Error("CheckStopLoss = false while cooling down")
	}

	g.ResetDailyLimits()
	if g.CheckStopLoss() {
		t.Error("CheckStopLoss = true after daily reset")
	}
	if !g.DailyPnL().IsZero() {
		t.Errorf("DailyPnL = %v after reset, want 0", g.DailyPnL())
	}
}

func TestStopLoss_StickyUntilReset(t *testing.T) {
	g := newTestGate()
	bet := g.RecordBet(testCandidate("NBA", 3.0, 0.4), decimal.NewFromInt(200), "VL-1", "voltaire")
	if _, err := g.SettleBet(bet.ID, ResultLost); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}

	// Cool-down persists even though a later win recovers the P&L.
	win := g.RecordBet(testCandidate("NBA", 4.0, 0.5), decimal.NewFromInt(100), "VL-2", "voltaire")
	if _, err := g.SettleBet(win.ID, ResultWon); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if !g.CheckStopLoss() {
		t.Error("cool-down cleared by P&L recovery; only ResetDailyLimits may clear it")
	}
}

func TestGetExposure(t *testing.T) {
	g := newTestGate()
	g.RecordBet(testCandidate("NBA", 2.0, 0.6), decimal.NewFromInt(50), "VL-1", "voltaire")
	g.RecordBet(testCandidate("NHL", 2.0, 0.6), decimal.NewFromInt(30), "PT-1", "pinetree")
	settledBet := g.RecordBet(testCandidate("NFL", 2.0, 0.6), decimal.NewFromInt(20), "VL-2", "voltaire")
	if _, err := g.SettleBet(settledBet.ID, ResultWon); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}

	exp := g.GetExposure()
	if !exp.TotalOpenStake.Equal(decimal.NewFromInt(80)) {
		t.Errorf("TotalOpenStake = %v, want 80 (settled bets excluded)", exp.TotalOpenStake)
	}
	if exp.OpenBetCount != 2 {
		t.Errorf("OpenBetCount = %d, want 2", exp.OpenBetCount)
	}
	if !exp.ByBroker["voltaire"].Equal(decimal.NewFromInt(50)) {
		t.Errorf("ByBroker[voltaire] = %v, want 50", exp.ByBroker["voltaire"])
	}
	if !exp.BySport["NHL"].Equal(decimal.NewFromInt(30)) {
		t.Errorf("BySport[NHL] = %v, want 30", exp.BySport["NHL"])
	}
}

func TestGetExposure_ZeroBankrollGuard(t *testing.T) {
	g := newTestGate()
	bet := g.RecordBet(testCandidate("NBA", 2.0, 0.6), decimal.NewFromInt(1000), "VL-1", "voltaire")
	if _, err := g.SettleBet(bet.ID, ResultLost); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	g.RecordBet(testCandidate("NBA", 2.0, 0.6), decimal.NewFromInt(10), "VL-2", "voltaire")

	exp := g.GetExposure()
	if exp.ExposurePct != 0 {
		t.Errorf("ExposurePct = %v, want 0 when bankroll is not positive", exp.ExposurePct)
	}
}

func TestPendingBets(t *testing.T) {
	g := newTestGate()
	a := g.RecordBet(testCandidate("NBA", 2.0, 0.6), decimal.NewFromInt(10), "VL-1", "voltaire")
	g.RecordBet(testCandidate("NBA", 2.0, 0.6), decimal.NewFromInt(10), "VL-2", "voltaire")
	if _, err := g.SettleBet(a.ID, ResultVoid); err != nil {
		t.Fatalf("SettleBet: %v", err)
	}

	pending := g.PendingBets()
	if len(pending) != 1 {
		t.Fatalf("PendingBets = %d, want 1", len(pending))
	}
	if pending[0].ConfirmationID != "VL-2" {
		t.Errorf("pending bet = %s, want VL-2", pending[0].ConfirmationID)
	}
}
