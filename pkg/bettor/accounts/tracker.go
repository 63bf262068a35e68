// Package accounts tracks balances, activity, and health across the
// sportsbook accounts the engine bets through.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mwhitcomb/parlayd/pkg/bettor/risk"
)

// ErrAccountNotFound is returned when an operation names an unknown
// account id.
var ErrAccountNotFound = errors.New("accounts: account not found")

// Balances below this are flagged in the health report.
var lowBalanceThreshold = decimal.NewFromInt(10)

// TxnType classifies a financial event on an account.
type TxnType string

const (
	TxnDeposit    TxnType = "deposit"
	TxnWithdrawal TxnType = "withdrawal"
	TxnBetWin     TxnType = "bet_win"
	TxnBetLoss    TxnType = "bet_loss"
	TxnBetVoid    TxnType = "bet_void"
)

// Transaction records a single financial event. Amount is always
// non-negative; direction is implied by Type.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TxnType
	Amount      decimal.Decimal
	Description string
	Timestamp   time.Time
}

// Account is a single sportsbook account.
type Account struct {
	ID           string
	Name         string
	Balance      decimal.Decimal
	MaxBet       decimal.Decimal // book-imposed single-bet cap; zero = unknown
	Limited      bool            // book has restricted the account
	Gubbed       bool            // promotions removed
	Notes        string
	CreatedAt    time.Time
	Transactions []Transaction
}

// Summary is a reporting view of one account.
type Summary struct {
	Name             string
	AccountID        string
	Balance          decimal.Decimal
	TotalBetWinnings decimal.Decimal
	TotalBetLosses   decimal.Decimal
	NetBettingPnL    decimal.Decimal
	Limited          bool
	Gubbed           bool
	TransactionCount int
}

// HealthFlag marks an account that needs attention.
type HealthFlag struct {
	Summary
	Flags []string
}

// Tracker is the registry of sportsbook accounts.
type Tracker struct {
	log *zap.Logger

	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewTracker creates an empty tracker.
func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{log: log, accounts: make(map[string]*Account)}
}

// AddAccount registers a sportsbook account. Pass an empty id to have one
// generated.
func (t *Tracker) AddAccount(name string, initialBalance, maxBet decimal.Decimal, id string) *Account {
	if id == "" {
		id = uuid.New().String()
	}
	acc := &Account{
		ID:        id,
		Name:      name,
		Balance:   initialBalance,
		MaxBet:    maxBet,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.accounts[id] = acc
	t.mu.Unlock()

	t.log.Info("account added",
		zap.String("name", name),
		zap.String("id", id),
		zap.String("balance", initialBalance.String()))
	return acc
}

// Account returns the account with the given id.
func (t *Tracker) Account(id string) (*Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc, ok := t.accounts[id]
	return acc, ok
}

// AccountByName returns the first account whose name matches,
// case-insensitively.
func (t *Tracker) AccountByName(name string) (*Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, acc := range t.accounts {
		if strings.EqualFold(acc.Name, name) {
			return acc, true
		}
	}
	return nil, false
}

// ListAccounts returns all registered accounts.
func (t *Tracker) ListAccounts() []*Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Account, 0, len(t.accounts))
	for _, acc := range t.accounts {
		out = append(out, acc)
	}
	return out
}

// RemoveAccount deletes an account, reporting whether it existed.
func (t *Tracker) RemoveAccount(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.accounts[id]; !ok {
		return false
	}
	delete(t.accounts, id)
	return true
}

// Deposit credits an account.
func (t *Tracker) Deposit(id string, amount decimal.Decimal, description string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("accounts: deposit amount must be positive, got %s", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	acc, ok := t.accounts[id]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	acc.Balance = acc.Balance.Add(amount)
	txn := acc.appendTxn(TxnDeposit, amount, description)
	t.log.Info("deposit",
		zap.String("account", acc.Name),
		zap.String("amount", amount.String()),
		zap.String("balance", acc.Balance.String()))
	return txn, nil
}

// Withdraw debits an account; the balance may not go negative.
func (t *Tracker) Withdraw(id string, amount decimal.Decimal, description string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("accounts: withdrawal amount must be positive, got %s", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	acc, ok := t.accounts[id]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	if amount.GreaterThan(acc.Balance) {
		return Transaction{}, fmt.Errorf("accounts: insufficient balance on %s: requested %s, have %s",
			acc.Name, amount, acc.Balance)
	}
	acc.Balance = acc.Balance.Sub(amount)
	txn := acc.appendTxn(TxnWithdrawal, amount, description)
	t.log.Info("withdrawal",
		zap.String("account", acc.Name),
		zap.String("amount", amount.String()),
		zap.String("balance", acc.Balance.String()))
	return txn, nil
}

// ApplyBetResult mirrors a settlement outcome onto an account balance:
// a win credits stake*(price-1), a loss debits the stake, a void changes
// nothing but is still journaled.
func (t *Tracker) ApplyBetResult(id string, stake decimal.Decimal, price float64, result risk.Result) (Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	acc, ok := t.accounts[id]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}

	var txn Transaction
	switch result {
	case risk.ResultWon:
		profit := stake.Mul(decimal.NewFromFloat(price - 1)).Round(2)
		acc.Balance = acc.Balance.Add(profit)
		txn = acc.appendTxn(TxnBetWin, profit, fmt.Sprintf("bet won, stake %s @ %.2f", stake, price))
	case risk.ResultLost:
		acc.Balance = acc.Balance.Sub(stake)
		txn = acc.appendTxn(TxnBetLoss, stake, fmt.Sprintf("bet lost, stake %s @ %.2f", stake, price))
	default:
		txn = acc.appendTxn(TxnBetVoid, decimal.Zero, fmt.Sprintf("bet voided, stake %s @ %.2f", stake, price))
	}
	t.log.Info("bet result applied",
		zap.String("account", acc.Name),
		zap.String("result", string(result)),
		zap.String("balance", acc.Balance.String()))
	return txn, nil
}

// ApplyBetResultByName is ApplyBetResult keyed by sportsbook name, the
// form settlement uses since bets store the broker name.
func (t *Tracker) ApplyBetResultByName(name string, stake decimal.Decimal, price float64, result risk.Result) (Transaction, error) {
	acc, ok := t.AccountByName(name)
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	return t.ApplyBetResult(acc.ID, stake, price, result)
}

// TotalBalance sums balances across all accounts.
func (t *Tracker) TotalBalance() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := decimal.Zero
	for _, acc := range t.accounts {
		total = total.Add(acc.Balance)
	}
	return total
}

// Summaries returns a reporting view of every account.
func (t *Tracker) Summaries() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Summary, 0, len(t.accounts))
	for _, acc := range t.accounts {
		out = append(out, acc.summary())
	}
	return out
}

// HealthReport returns accounts that need attention: limited, gubbed, or
// carrying a balance under $10.
func (t *Tracker) HealthReport() []HealthFlag {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var flagged []HealthFlag
	for _, acc := range t.accounts {
		var flags []string
		if acc.Limited {
			flags = append(flags, "limited")
		}
		if acc.Gubbed {
			flags = append(flags, "gubbed")
		}
		if acc.Balance.LessThan(lowBalanceThreshold) {
			flags = append(flags, "low_balance")
		}
		if len(flags) > 0 {
			flagged = append(flagged, HealthFlag{Summary: acc.summary(), Flags: flags})
		}
	}
	return flagged
}

func (a *Account) appendTxn(typ TxnType, amount decimal.Decimal, description string) Transaction {
	txn := Transaction{
		ID:          uuid.New().String(),
		AccountID:   a.ID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	a.Transactions = append(a.Transactions, txn)
	return txn
}

func (a *Account) summary() Summary {
	wins := decimal.Zero
	losses := decimal.Zero
	for _, txn := range a.Transactions {
		switch txn.Type {
		case TxnBetWin:
			wins = wins.Add(txn.Amount)
		case TxnBetLoss:
			losses = losses.Add(txn.Amount)
		}
	}
	return Summary{
		Name:             a.Name,
		AccountID:        a.ID,
		Balance:          a.Balance,
		TotalBetWinnings: wins,
		TotalBetLosses:   losses,
		NetBettingPnL:    wins.Sub(losses),
		Limited:          a.Limited,
		Gubbed:           a.Gubbed,
		TransactionCount: len(a.Transactions),
	}
}
