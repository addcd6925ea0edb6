// Package confirm implements the Confirmation Gate (SPEC_FULL.md §4.5 step 4 / §6): it consumes
//   fee and total amounts, invokes the external UI, and aborts the session on rejection.
package confirm

import (
	"context"

	"github.com/tokenized/signcore/logger"
)

// UI mirrors the external confirm/confirm_transaction/layout_simple_message/go_home collaborators
//   from §6. The core only ever calls through this interface; a real device wires a display
//   driver, tests wire a scripted fake.
type UI interface {
	ConfirmFee(ctx context.Context, fee, total uint64) bool
	ConfirmTransaction(ctx context.Context, total, fee uint64) bool
	ShowMessage(ctx context.Context, text string)
	GoHome(ctx context.Context)
}

// Gate wraps a UI implementation with the logging the teacher's packages apply around
//   user-facing decisions.
type Gate struct {
	UI UI
}

func New(ui UI) *Gate {
	return &Gate{UI: ui}
}

// ConfirmFee asks the user to approve a fee that exceeds the coin's max-fee-per-kb threshold.
//   A rejection is Failure_ActionCancelled at the call site (machine.go).
func (g *Gate) ConfirmFee(ctx context.Context, fee, total uint64) bool {
	logger.Verbose(ctx, "Confirming fee : %d of %d", fee, total)
	approved := g.UI.ConfirmFee(ctx, fee, total)
	if !approved {
		logger.Warn(ctx, "Fee confirmation rejected")
	}
	return approved
}

// ConfirmTransaction asks the user to approve the final signing total, always invoked once per
//   session at the end of phase 1, whether or not the fee prompt was shown. A rejected fee
//   aborts the session before this is reached.
func (g *Gate) ConfirmTransaction(ctx context.Context, total, fee uint64) bool {
	logger.Verbose(ctx, "Confirming transaction : total %d fee %d", total, fee)
	approved := g.UI.ConfirmTransaction(ctx, total, fee)
	if !approved {
		logger.Warn(ctx, "Transaction confirmation rejected")
	}
	return approved
}

// Abort returns the UI to its home screen, mirroring go_home() on any fatal error (§5).
func (g *Gate) Abort(ctx context.Context, message string) {
	if message != "" {
		g.UI.ShowMessage(ctx, message)
	}
	g.UI.GoHome(ctx)
}
