// parlayd is the sports parlay decision daemon. It composes parlay
// candidates from the day's slate, sizes and places the ones that clear
// the risk and budget policies, and settles graded bets.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mwhitcomb/parlayd/internal/config"
	"github.com/mwhitcomb/parlayd/internal/logger"
	"github.com/mwhitcomb/parlayd/pkg/bettor/accounts"
	"github.com/mwhitcomb/parlayd/pkg/bettor/budget"
	"github.com/mwhitcomb/parlayd/pkg/bettor/circadian"
	"github.com/mwhitcomb/parlayd/pkg/bettor/metrics"
	"github.com/mwhitcomb/parlayd/pkg/bettor/orchestrator"
	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
	"github.com/mwhitcomb/parlayd/pkg/bettor/risk"
	"github.com/mwhitcomb/parlayd/pkg/bettor/slate"
	"github.com/mwhitcomb/parlayd/pkg/report"
	"github.com/mwhitcomb/parlayd/pkg/sportsbook"
)

var (
	configPath = flag.String("config", "", "Path to config file (optional)")
	runOnce    = flag.Bool("once", false, "Run a single decision cycle and exit")
	settleOnce = flag.Bool("settle-once", false, "Run a single settlement pass and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New("parlayd", cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app, err := newApp(cfg, log)
	if err != nil {
		log.Fatal("initialization failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		app.runCycle(ctx)
		return
	}
	if *settleOnce {
		app.runSettlement(ctx)
		return
	}

	if cfg.Metrics.Enabled {
		go app.serveMetrics(cfg.Metrics.Addr)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule.Assessment, func() {
		app.orch.ResetDaily()
		app.runCycle(ctx)
	}); err != nil {
		log.Fatal("bad assessment schedule", zap.String("spec", cfg.Schedule.Assessment), zap.Error(err))
	}
	if _, err := c.AddFunc(cfg.Schedule.Settlement, func() {
		app.runSettlement(ctx)
	}); err != nil {
		log.Fatal("bad settlement schedule", zap.String("spec", cfg.Schedule.Settlement), zap.Error(err))
	}
	c.Start()

	log.Info("parlayd running",
		zap.String("assessment", cfg.Schedule.Assessment),
		zap.String("settlement", cfg.Schedule.Settlement),
		zap.Strings("sports", cfg.Engine.Sports),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		log.Warn("jobs still running at shutdown deadline")
	}
}

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	orch    *orchestrator.Orchestrator
	gate    *risk.Gate
	ledger  *budget.Ledger
	tracker *accounts.Tracker
	metrics *metrics.DecisionMetrics
	console *report.Writer
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	var model *circadian.Model
	if cfg.Circadian.Enabled {
		model = circadian.NewModel(&circadian.Config{
			LateNightPenalty:   cfg.Circadian.LateNightPenalty,
			BackToBackPenalty:  cfg.Circadian.BackToBackPenalty,
			TravelShiftPenalty: cfg.Circadian.TravelShiftPenalty,
			OptimalWindowBonus: cfg.Circadian.OptimalWindowBonus,
			SensitiveSports:    cfg.Circadian.SensitiveSports,
		})
	}

	bankroll := decimal.NewFromFloat(cfg.Risk.Bankroll)
	composer := parlay.NewComposer(&parlay.ComposerConfig{
		Bankroll:       bankroll,
		KellyFraction:  cfg.Risk.KellyFraction,
		MaxExposurePct: cfg.Risk.MaxExposurePct,
	}, model)
	opt := parlay.NewOptimizer(&parlay.OptimizerConfig{
		MinEdge: cfg.Engine.MinEdge,
		MaxLegs: cfg.Engine.MaxLegs,
		TopN:    cfg.Engine.TopN,
	}, composer, log)

	gate := risk.NewGate(&risk.Config{
		Bankroll:        bankroll,
		MaxDailyLossPct: cfg.Risk.MaxDailyLossPct,
		MaxExposurePct:  cfg.Risk.MaxExposurePct,
		KellyFraction:   cfg.Risk.KellyFraction,
	}, log)

	ledger := budget.NewLedger(log)
	if err := configureBudgets(ledger, cfg.Budget); err != nil {
		return nil, fmt.Errorf("budgets: %w", err)
	}

	router, tracker, err := buildBooks(cfg.Books, log)
	if err != nil {
		return nil, fmt.Errorf("books: %w", err)
	}

	m := metrics.NewDecisionMetrics()
	source := slate.NewFileSource(cfg.Engine.SlatePath)
	orch := orchestrator.New(&orchestrator.Config{
		Sports:          cfg.Engine.Sports,
		MaxBetsPerCycle: cfg.Engine.MaxBetsPerCycle,
		PriceTolerance:  cfg.Engine.PriceTolerance,
	}, source, opt, gate, ledger, router, tracker, m, log)

	return &app{
		cfg:     cfg,
		log:     log,
		orch:    orch,
		gate:    gate,
		ledger:  ledger,
		tracker: tracker,
		metrics: m,
		console: report.NewWriter(os.Stdout),
	}, nil
}

func configureBudgets(ledger *budget.Ledger, cfg config.BudgetConfig) error {
	sportLimits := make(map[string]decimal.Decimal, len(cfg.SportLimits))
	for sport, limit := range cfg.SportLimits {
		sportLimits[sport] = decimal.NewFromFloat(limit)
	}

	periods := []struct {
		period budget.Period
		limit  float64
	}{
		{budget.PeriodDaily, cfg.DailyLimit},
		{budget.PeriodWeekly, cfg.WeeklyLimit},
		{budget.PeriodMonthly, cfg.MonthlyLimit},
	}
	for _, p := range periods {
		if p.limit <= 0 {
			continue
		}
		// Sport sub-limits bind at the daily granularity.
		var cats map[string]decimal.Decimal
		if p.period == budget.PeriodDaily {
			cats = sportLimits
		}
		if err := ledger.Configure(p.period, decimal.NewFromFloat(p.limit), cats); err != nil {
			return err
		}
	}
	return nil
}

func buildBooks(cfg config.BooksConfig, log *zap.Logger) (*sportsbook.Router, *accounts.Tracker, error) {
	tracker := accounts.NewTracker(log)

	books := make(map[string]sportsbook.Sportsbook, len(cfg.Books))
	for name, bc := range cfg.Books {
		switch bc.Kind {
		case "props":
			opts := []sportsbook.PropsOption{}
			if bc.APIKey != "" {
				opts = append(opts, sportsbook.WithAPIKey(bc.APIKey))
			}
			books[name] = sportsbook.NewPropsBook(name, bc.BaseURL, opts...)
		default:
			books[name] = sportsbook.NewGameLineBook(name, log)
		}
		tracker.AddAccount(name, decimal.Zero, decimal.Zero, "")
	}
	if _, ok := books[cfg.Default]; !ok {
		books[cfg.Default] = sportsbook.NewGameLineBook(cfg.Default, log)
		tracker.AddAccount(cfg.Default, decimal.Zero, decimal.Zero, "")
	}

	router := sportsbook.NewRouter(books[cfg.Default])
	for name, bc := range cfg.Books {
		for _, sport := range bc.Sports {
			router.Route(sport, books[name])
		}
	}
	return router, tracker, nil
}

func (a *app) runCycle(ctx context.Context) {
	rep, err := a.orch.RunCycle(ctx)
	if err != nil {
		a.log.Error("cycle failed", zap.Error(err))
		return
	}

	a.console.PrintBudgets(a.ledger, time.Now().UTC())
	a.console.PrintExposure(a.gate)
	if len(rep.Placed) > 0 {
		fmt.Printf("\nplaced %d of %d candidates\n", len(rep.Placed), rep.Candidates)
	}
}

func (a *app) runSettlement(ctx context.Context) {
	n, err := a.orch.SettlePending(ctx)
	if err != nil {
		a.log.Error("settlement failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.console.PrintExposure(a.gate)
		a.console.PrintAccounts(a.tracker)
	}
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	a.log.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.log.Error("metrics server stopped", zap.Error(err))
	}
}
