package market

import (
	"context"
	"fmt"
	"log/slog"
)

// settlementTxn is a scoped transaction over external effects: fund
// movements, registry calls, and store writes. Each completed step registers
// an undo; if a later step fails, rollback unwinds every prior effect in
// reverse order so settlement is all-or-nothing. There is no cancellation of
// an in-flight settlement: it runs to completion or rolls back.
type settlementTxn struct {
	logger *slog.Logger
	undos  []undoStep
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func newSettlementTxn(logger *slog.Logger) *settlementTxn {
	return &settlementTxn{logger: logger}
}

// step executes do and, on success, registers undo for rollback. A nil undo
// is allowed for effects that need no compensation (final appends).
func (t *settlementTxn) step(ctx context.Context, name string, do func(ctx context.Context) error, undo func(ctx context.Context) error) error {
	if err := do(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if undo != nil {
		t.undos = append(t.undos, undoStep{name: name, fn: undo})
	}
	return nil
}

// rollback unwinds completed steps in reverse order. Compensation runs on a
// background context so rollback still succeeds when the caller's context is
// already cancelled. Undo failures are logged and skipped; they cannot stop
// the remaining compensation.
func (t *settlementTxn) rollback() {
	ctx := context.Background()
	for i := len(t.undos) - 1; i >= 0; i-- {
		u := t.undos[i]
		if err := u.fn(ctx); err != nil {
			t.logger.Error("market: rollback step failed",
				slog.String("step", u.name),
				slog.String("error", err.Error()),
			)
		}
	}
	t.undos = nil
}

// commit discards the undo log; effects are now permanent.
func (t *settlementTxn) commit() {
	t.undos = nil
}
