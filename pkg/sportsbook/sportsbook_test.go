package sportsbook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

func testLegs() []parlay.Leg {
	return []parlay.Leg{
		{EventID: "evt-1", Selection: "Celtics ML", Price: 1.8, WinProbability: 0.6},
		{EventID: "evt-2", Selection: "Knicks ML", Price: 2.1, WinProbability: 0.5},
	}
}

func TestRouterRoutesAndFallsBack(t *testing.T) {
	gameline := NewGameLineBook("voltaire", nil)
	props := NewGameLineBook("pinetree", nil)

	r := NewRouter(gameline)
	r.Route("NBA", props)

	book, err := r.ForSport("nba")
	if err != nil {
		t.Fatalf("ForSport: %v", err)
	}
	if book.Name() != "pinetree" {
		t.Errorf("routed sport went to %s, want pinetree", book.Name())
	}

	book, err = r.ForSport("nhl")
	if err != nil {
		t.Fatalf("ForSport fallback: %v", err)
	}
	if book.Name() != "voltaire" {
		t.Errorf("unrouted sport went to %s, want fallback voltaire", book.Name())
	}

	if _, ok := r.ByName("VOLTAIRE"); !ok {
		t.Error("ByName should match case-insensitively")
	}
	if len(r.Books()) != 2 {
		t.Errorf("Books() = %d entries, want 2", len(r.Books()))
	}
}

func TestRouterNoFallback(t *testing.T) {
	r := NewRouter(nil)
	if _, err := r.ForSport("nba"); err == nil {
		t.Fatal("expected error with no route and no fallback")
	}
}

func TestGameLineBookLifecycle(t *testing.T) {
	ctx := context.Background()
	book := NewGameLineBook("voltaire", nil)
	book.SetPrice("NBA", "evt-1", 1.85)
	book.SetPrice("nba", "evt-2", 2.05)

	prices, err := book.FetchPrices(ctx, "nba", []string{"evt-1", "evt-2", "evt-missing"})
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2 (missing event omitted)", len(prices))
	}
	if prices["evt-1"] != 1.85 {
		t.Errorf("evt-1 price = %v, want 1.85", prices["evt-1"])
	}

	orderID, err := book.SubmitOrder(ctx, testLegs(), decimal.NewFromInt(25), 3.78)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	status, err := book.PollOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("PollOrder: %v", err)
	}
	if status.State != StateOpen {
		t.Errorf("state = %s, want %s", status.State, StateOpen)
	}

	if err := book.SetResult(orderID, "won"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	status, _ = book.PollOrder(ctx, orderID)
	if status.State != StateSettled || status.Result != "won" {
		t.Errorf("after grading: state=%s result=%s", status.State, status.Result)
	}

	if err := book.SetResult("bogus", "won"); err == nil {
		t.Error("grading unknown order should fail")
	}
}

func TestGameLineBookRejectsBadOrders(t *testing.T) {
	ctx := context.Background()
	book := NewGameLineBook("voltaire", nil)

	if _, err := book.SubmitOrder(ctx, nil, decimal.NewFromInt(10), 2.0); err == nil {
		t.Error("empty order accepted")
	}
	if _, err := book.SubmitOrder(ctx, testLegs(), decimal.Zero, 2.0); err == nil {
		t.Error("zero stake accepted")
	}
	if _, err := book.PollOrder(ctx, "bogus"); err == nil {
		t.Error("polling unknown order should fail")
	}
}

func TestPropsBookFetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("league"); got != "basketball_nba" {
			t.Errorf("league = %s, want basketball_nba", got)
		}
		json.NewEncoder(w).Encode([]propsPriceEntry{
			{EventID: "evt-1", Price: 1.92},
			{EventID: "evt-2", Price: 2.3},
		})
	}))
	defer srv.Close()

	book := NewPropsBook("pinetree", srv.URL)
	prices, err := book.FetchPrices(context.Background(), "NBA", []string{"evt-1", "evt-2"})
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if prices["evt-1"] != 1.92 || prices["evt-2"] != 2.3 {
		t.Errorf("prices = %v", prices)
	}
}

func TestPropsBookSubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/orders":
			var req propsOrderRequest
			json.NewDecoder(r.Body).Decode(&req)
			if len(req.Legs) != 2 {
				t.Errorf("legs = %d, want 2", len(req.Legs))
			}
			// Selections arrive normalized.
			if req.Legs[0].Selection != "celtics ml" {
				t.Errorf("selection = %q, want normalized", req.Legs[0].Selection)
			}
			if req.Stake != "25.00" {
				t.Errorf("stake = %s, want 25.00", req.Stake)
			}
			json.NewEncoder(w).Encode(propsOrderResponse{OrderID: "ord-77", State: "open"})
		case r.Method == "GET" && r.URL.Path == "/v1/orders/ord-77":
			json.NewEncoder(w).Encode(propsOrderResponse{OrderID: "ord-77", State: "settled", Result: "lost"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	book := NewPropsBook("pinetree", srv.URL, WithAPIKey("test-key"))
	ctx := context.Background()

	orderID, err := book.SubmitOrder(ctx, testLegs(), decimal.NewFromInt(25), 3.78)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if orderID != "ord-77" {
		t.Errorf("orderID = %s", orderID)
	}

	status, err := book.PollOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("PollOrder: %v", err)
	}
	if status.State != "settled" || status.Result != "lost" {
		t.Errorf("status = %+v", status)
	}
}

func TestPropsBookRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]propsPriceEntry{{EventID: "evt-1", Price: 2.0}})
	}))
	defer srv.Close()

	book := NewPropsBook("pinetree", srv.URL, WithRateLimit(1000, 10))
	prices, err := book.FetchPrices(context.Background(), "nhl", []string{"evt-1"})
	if err != nil {
		t.Fatalf("FetchPrices after retries: %v", err)
	}
	if prices["evt-1"] != 2.0 {
		t.Errorf("prices = %v", prices)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestPropsBookGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	book := NewPropsBook("pinetree", srv.URL, WithRateLimit(1000, 10))
	if _, err := book.FetchPrices(context.Background(), "nhl", []string{"evt-1"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestNormalizeSelection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nikola Jokić", "nikola jokic"},
		{"  LeBron   James ", "lebron james"},
		{"D'Angelo Russell", "dangelo russell"},
		{"St. Louis Blues", "st louis blues"},
		{"Montréal Canadiens", "montreal canadiens"},
	}
	for _, tt := range tests {
		if got := NormalizeSelection(tt.in); got != tt.want {
			t.Errorf("NormalizeSelection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
