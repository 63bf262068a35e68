// Package sportsbook defines the interface the betting engine uses to talk
// to bookmakers, plus the router that picks a book for each sport.
package sportsbook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

// Order states reported by books.
const (
	StatePending = "pending"
	StateOpen    = "open"
	StateSettled = "settled"
	StateVoided  = "voided"
)

// PriceMap holds current decimal odds keyed by event id.
type PriceMap map[string]float64

// OrderStatus is a book's view of a submitted order.
type OrderStatus struct {
	OrderID string
	State   string
	Result  string // "won", "lost", or "void" once State is settled/voided
}

// Sportsbook is a bookmaker the engine can price from and bet through.
type Sportsbook interface {
	// Name returns the book's identifier used in routing and audit rows.
	Name() string

	// FetchPrices returns current decimal odds for the given events.
	FetchPrices(ctx context.Context, sport string, eventIDs []string) (PriceMap, error)

	// SubmitOrder places a parlay at the given combined price and returns
	// the book's confirmation id.
	SubmitOrder(ctx context.Context, legs []parlay.Leg, stake decimal.Decimal, price float64) (string, error)

	// PollOrder reports the current state of a previously submitted order.
	PollOrder(ctx context.Context, orderID string) (OrderStatus, error)
}

// Router maps sports to books. Sports without an explicit route fall back
// to the default book.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]Sportsbook // lowercase sport -> book
	fallback Sportsbook
	books    map[string]Sportsbook // lowercase name -> book
}

// NewRouter creates a router with the given default book.
func NewRouter(fallback Sportsbook) *Router {
	r := &Router{
		routes:   make(map[string]Sportsbook),
		fallback: fallback,
		books:    make(map[string]Sportsbook),
	}
	if fallback != nil {
		r.books[strings.ToLower(fallback.Name())] = fallback
	}
	return r
}

// Route directs a sport to a specific book.
func (r *Router) Route(sport string, book Sportsbook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[strings.ToLower(sport)] = book
	r.books[strings.ToLower(book.Name())] = book
}

// ForSport returns the book that handles the given sport.
func (r *Router) ForSport(sport string) (Sportsbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if book, ok := r.routes[strings.ToLower(sport)]; ok {
		return book, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("sportsbook: no book routed for sport %q and no fallback set", sport)
}

// ByName looks up a registered book by name, case-insensitively.
func (r *Router) ByName(name string) (Sportsbook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[strings.ToLower(name)]
	return book, ok
}

// Books returns all registered books.
func (r *Router) Books() []Sportsbook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.books))
	out := make([]Sportsbook, 0, len(r.books))
	for name, book := range r.books {
		if !seen[name] {
			seen[name] = true
			out = append(out, book)
		}
	}
	return out
}
