// Package report renders console summaries of the engine's state.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/mwhitcomb/parlayd/pkg/bettor/accounts"
	"github.com/mwhitcomb/parlayd/pkg/bettor/budget"
	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
	"github.com/mwhitcomb/parlayd/pkg/bettor/risk"
)

// Writer renders tables to a destination, typically stdout.
type Writer struct {
	out io.Writer
}

// NewWriter creates a report writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// PrintBudgets renders the budget position for every configured period.
func (w *Writer) PrintBudgets(ledger *budget.Ledger, ref time.Time) {
	summary := ledger.Summary(ref)
	if len(summary) == 0 {
		fmt.Fprintln(w.out, "no budgets configured")
		return
	}

	fmt.Fprintln(w.out, "\nBUDGETS")
	table := tablewriter.NewWriter(w.out)
	table.Header("Period", "Window", "Limit", "Spent", "Remaining", "Used")

	for _, period := range budget.Periods() {
		s, ok := summary[period]
		if !ok {
			continue
		}
		window := fmt.Sprintf("%s .. %s",
			s.PeriodStart.Format("2006-01-02"),
			s.PeriodEnd.Format("2006-01-02"))
		table.Append(
			string(period),
			window,
			"$"+s.Limit.StringFixed(2),
			"$"+s.Spent.StringFixed(2),
			"$"+s.Remaining.StringFixed(2),
			fmt.Sprintf("%.1f%%", s.UtilisationPct),
		)
	}
	table.Render()
}

// PrintExposure renders the risk gate's open position.
func (w *Writer) PrintExposure(gate *risk.Gate) {
	exp := gate.GetExposure()

	fmt.Fprintf(w.out, "\nRISK  bankroll $%s  daily P&L $%s",
		gate.Bankroll().StringFixed(2), gate.DailyPnL().StringFixed(2))
	if gate.CoolingDown() {
		fmt.Fprintf(w.out, "  [COOL-DOWN]")
	}
	fmt.Fprintln(w.out)

	table := tablewriter.NewWriter(w.out)
	table.Header("Open Bets", "Open Stake", "Exposure")
	table.Append(
		fmt.Sprintf("%d", exp.OpenBetCount),
		"$"+exp.TotalOpenStake.StringFixed(2),
		fmt.Sprintf("%.1f%%", exp.ExposurePct),
	)
	table.Render()

	if len(exp.ByBroker) > 0 {
		by := tablewriter.NewWriter(w.out)
		by.Header("Book", "Stake")
		for broker, stake := range exp.ByBroker {
			by.Append(broker, "$"+stake.StringFixed(2))
		}
		by.Render()
	}
}

// PrintCandidates renders ranked parlay candidates.
func (w *Writer) PrintCandidates(cands []*parlay.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintln(w.out, "no candidates cleared the bar")
		return
	}

	fmt.Fprintln(w.out, "\nCANDIDATES")
	table := tablewriter.NewWriter(w.out)
	table.Header("#", "Sport", "Legs", "Price", "Win%", "EV", "Stake", "Notes")

	for i, c := range cands {
		notes := ""
		if len(c.AdjustmentReasons) > 0 {
			notes = c.AdjustmentReasons[0]
			if len(c.AdjustmentReasons) > 1 {
				notes += fmt.Sprintf(" (+%d)", len(c.AdjustmentReasons)-1)
			}
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			c.Sport,
			fmt.Sprintf("%d", len(c.Legs)),
			fmt.Sprintf("%.2f", c.CombinedPrice),
			fmt.Sprintf("%.1f%%", c.CombinedWinProbability*100),
			fmt.Sprintf("%+.3f", c.ExpectedValue),
			"$"+c.RecommendedStake.StringFixed(2),
			notes,
		)
	}
	table.Render()
}

// PrintAccounts renders sportsbook account balances and health flags.
func (w *Writer) PrintAccounts(tracker *accounts.Tracker) {
	summaries := tracker.Summaries()
	if len(summaries) == 0 {
		fmt.Fprintln(w.out, "no accounts registered")
		return
	}

	fmt.Fprintf(w.out, "\nACCOUNTS  total $%s\n", tracker.TotalBalance().StringFixed(2))
	table := tablewriter.NewWriter(w.out)
	table.Header("Book", "Balance", "Won", "Lost", "Net", "Flags")

	flagsByID := make(map[string]string)
	for _, h := range tracker.HealthReport() {
		flags := ""
		for i, f := range h.Flags {
			if i > 0 {
				flags += ","
			}
			flags += f
		}
		flagsByID[h.AccountID] = flags
	}

	for _, s := range summaries {
		table.Append(
			s.Name,
			"$"+s.Balance.StringFixed(2),
			"$"+s.TotalBetWinnings.StringFixed(2),
			"$"+s.TotalBetLosses.StringFixed(2),
			"$"+s.NetBettingPnL.StringFixed(2),
			flagsByID[s.AccountID],
		)
	}
	table.Render()
}
