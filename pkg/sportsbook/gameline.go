package sportsbook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

// GameLineBook is a game-line bookmaker backed by an in-memory price
// board. It fills every order immediately, which makes it the paper book
// for dry runs and the fixture book for tests. Results are fed in through
// SetResult as events finish.
type GameLineBook struct {
	name string
	log  *zap.Logger

	mu     sync.RWMutex
	prices map[string]PriceMap // lowercase sport -> event id -> odds
	orders map[string]*gameLineOrder
}

type gameLineOrder struct {
	status      OrderStatus
	legs        []parlay.Leg
	stake       decimal.Decimal
	price       float64
	submittedAt time.Time
}

// NewGameLineBook creates a game-line book with the given name.
func NewGameLineBook(name string, log *zap.Logger) *GameLineBook {
	if log == nil {
		log = zap.NewNop()
	}
	return &GameLineBook{
		name:   name,
		log:    log,
		prices: make(map[string]PriceMap),
		orders: make(map[string]*gameLineOrder),
	}
}

// Name implements Sportsbook.
func (b *GameLineBook) Name() string { return b.name }

// SetPrice posts odds for an event on the board.
func (b *GameLineBook) SetPrice(sport, eventID string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(sport)
	if b.prices[key] == nil {
		b.prices[key] = make(PriceMap)
	}
	b.prices[key][eventID] = price
}

// FetchPrices implements Sportsbook. Events without a posted price are
// omitted from the result.
func (b *GameLineBook) FetchPrices(ctx context.Context, sport string, eventIDs []string) (PriceMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	board := b.prices[strings.ToLower(sport)]
	out := make(PriceMap, len(eventIDs))
	for _, id := range eventIDs {
		if price, ok := board[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

// SubmitOrder implements Sportsbook. Orders are accepted immediately.
func (b *GameLineBook) SubmitOrder(ctx context.Context, legs []parlay.Leg, stake decimal.Decimal, price float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(legs) == 0 {
		return "", fmt.Errorf("%s: order has no legs", b.name)
	}
	if !stake.IsPositive() {
		return "", fmt.Errorf("%s: stake must be positive, got %s", b.name, stake)
	}

	orderID := uuid.New().String()
	b.mu.Lock()
	b.orders[orderID] = &gameLineOrder{
		status:      OrderStatus{OrderID: orderID, State: StateOpen},
		legs:        legs,
		stake:       stake,
		price:       price,
		submittedAt: time.Now().UTC(),
	}
	b.mu.Unlock()

	b.log.Info("order accepted",
		zap.String("book", b.name),
		zap.String("order_id", orderID),
		zap.Int("legs", len(legs)),
		zap.String("stake", stake.String()),
		zap.Float64("price", price))
	return orderID, nil
}

// PollOrder implements Sportsbook.
func (b *GameLineBook) PollOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return OrderStatus{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[orderID]
	if !ok {
		return OrderStatus{}, fmt.Errorf("%s: unknown order %s", b.name, orderID)
	}
	return order.status, nil
}

// SetResult grades an open order. Pass "void" to cancel it.
func (b *GameLineBook) SetResult(orderID, result string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("%s: unknown order %s", b.name, orderID)
	}
	order.status.Result = result
	if result == "void" {
		order.status.State = StateVoided
	} else {
		order.status.State = StateSettled
	}
	return nil
}
