package funds

import (
	"context"
	"errors"
	"testing"

	"github.com/voxelspace/spacemarket/internal/domain"
)

func TestPayMovesFunds(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	l.Deposit("alice", 1_000)

	if err := l.Pay(ctx, "alice", "bob", 400); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if b, _ := l.Balance(ctx, "alice"); b != 600 {
		t.Fatalf("expected alice 600, got %d", b)
	}
	if b, _ := l.Balance(ctx, "bob"); b != 400 {
		t.Fatalf("expected bob 400, got %d", b)
	}
}

func TestPayInsufficientFunds(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	l.Deposit("alice", 100)

	err := l.Pay(ctx, "alice", "bob", 200)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing moves on a rejected payment.
	if b, _ := l.Balance(ctx, "alice"); b != 100 {
		t.Fatalf("expected alice unchanged at 100, got %d", b)
	}
	if b, _ := l.Balance(ctx, "bob"); b != 0 {
		t.Fatalf("expected bob unchanged at 0, got %d", b)
	}
}

func TestPayRejectsNegativeAmount(t *testing.T) {
	l := NewLedger()
	if err := l.Pay(context.Background(), "alice", "bob", -1); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestZeroAmountIsNoOp(t *testing.T) {
	l := NewLedger()
	if err := l.Pay(context.Background(), "alice", "bob", 0); err != nil {
		t.Fatalf("expected zero pay to succeed, got %v", err)
	}
}

func TestHoldAndRefundRoundTrip(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	l.Deposit("bob", 500)

	if err := l.Hold(ctx, "bob", 500); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if b, _ := l.Balance(ctx, "bob"); b != 0 {
		t.Fatalf("expected bob 0 after hold, got %d", b)
	}
	if b, _ := l.Balance(ctx, domain.EscrowAccount); b != 500 {
		t.Fatalf("expected escrow 500, got %d", b)
	}

	if err := l.Refund(ctx, "bob", 500); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if b, _ := l.Balance(ctx, "bob"); b != 500 {
		t.Fatalf("expected bob restored to 500, got %d", b)
	}
	if b, _ := l.Balance(ctx, domain.EscrowAccount); b != 0 {
		t.Fatalf("expected empty escrow, got %d", b)
	}
}

func TestUnknownAccountBalanceIsZero(t *testing.T) {
	l := NewLedger()
	if b, _ := l.Balance(context.Background(), "nobody"); b != 0 {
		t.Fatalf("expected 0 for unknown account, got %d", b)
	}
}
