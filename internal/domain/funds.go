package domain

import "context"

// Well-known ledger account names.
const (
	PlatformAccount = "platform"
	EscrowAccount   = "escrow"
)

// Ledger is the funds-movement collaborator. Amounts are integer cents.
// Pay and Refund are synchronous; a failure means no funds moved.
type Ledger interface {
	// Pay moves amount from one account to another.
	Pay(ctx context.Context, from, to string, amount int64) error
	// Refund returns amount from escrow to the given account.
	Refund(ctx context.Context, to string, amount int64) error
	// Hold moves amount from the account into escrow (bid deposits).
	Hold(ctx context.Context, from string, amount int64) error
	// Balance reports the current balance of an account.
	Balance(ctx context.Context, account string) (int64, error)
}
