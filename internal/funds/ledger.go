// Package funds implements the in-process funds-movement collaborator: an
// account ledger with an escrow account for held bids. Amounts are integer
// cents so fee splits are exact.
package funds

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Ledger is a thread-safe account ledger implementing domain.Ledger.
// Accounts are created on first credit; debits below zero are rejected with
// domain.ErrInsufficientFunds and move nothing.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewLedger creates an empty ledger with the platform and escrow accounts
// initialized.
func NewLedger() *Ledger {
	return &Ledger{
		balances: map[string]int64{
			domain.PlatformAccount: 0,
			domain.EscrowAccount:   0,
		},
	}
}

// Deposit credits an account. Used to fund buyer accounts and in tests.
func (l *Ledger) Deposit(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Pay moves amount from one account to another. A zero amount is a no-op.
func (l *Ledger) Pay(_ context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("funds: pay %s -> %s: %w", from, to, domain.ErrInvalidPrice)
	}
	if amount == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("funds: pay %s -> %s: %w", from, to, domain.ErrInsufficientFunds)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Hold moves amount from the account into escrow. Bid deposits are held so
// an outbid refund can never bounce.
func (l *Ledger) Hold(ctx context.Context, from string, amount int64) error {
	return l.Pay(ctx, from, domain.EscrowAccount, amount)
}

// Refund returns amount from escrow to the given account.
func (l *Ledger) Refund(ctx context.Context, to string, amount int64) error {
	return l.Pay(ctx, domain.EscrowAccount, to, amount)
}

// Balance reports the current balance of an account. Unknown accounts have
// a zero balance.
func (l *Ledger) Balance(_ context.Context, account string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
