/*
balance.go - Per-user resource balance accounting

PURPOSE:
  Holds and mutates per-requester balances (leave days, WFH days). The
  engine touches a balance in exactly two places:

  1. Pre-check at request creation: closing >= quantity, else the request
     is blocked with InsufficientBalanceError.
  2. Deduction at final approval: consumed += days, closing recomputed,
     inside the same transaction as the terminal request write.

BALANCE IDENTITY:
  closing == opening + accrued + carriedForward - consumed - encashed

  The identity and closing >= 0 must hold after every deduction. Deduct
  therefore refuses to drive a balance negative: the source system checked
  sufficiency only at creation, which let two requests created against the
  same balance jointly over-deduct. The guard here closes that window
  while keeping the creation-time check as the user-facing gate.

SEEDING:
  How balances are seeded per employment type is out of scope; Seed is the
  administrative write that external onboarding invokes.

SEE ALSO:
  - machine.go:   invokes Deduct at the finalizing transition
  - lifecycle.go: invokes PreCheck at creation
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE - One row per user + resource type
// =============================================================================

type Balance struct {
	UserID       UserID
	ResourceType string

	Opening        decimal.Decimal
	Accrued        decimal.Decimal
	Consumed       decimal.Decimal
	CarriedForward decimal.Decimal
	Encashed       decimal.Decimal
	Closing        decimal.Decimal

	UpdatedAt time.Time
}

// ComputeClosing returns the balance identity value.
func (b Balance) ComputeClosing() decimal.Decimal {
	return b.Opening.
		Add(b.Accrued).
		Add(b.CarriedForward).
		Sub(b.Consumed).
		Sub(b.Encashed)
}

// Consistent reports whether the stored closing matches the identity.
func (b Balance) Consistent() bool {
	return b.Closing.Equal(b.ComputeClosing())
}

// =============================================================================
// LEDGER - Balance mutation with invariant enforcement
// =============================================================================

// Ledger performs balance reads and writes against a BalanceStore. Create
// one per transaction scope so deductions join the terminal-state write.
type Ledger struct {
	Balances BalanceStore
}

func NewLedger(balances BalanceStore) *Ledger {
	return &Ledger{Balances: balances}
}

// PreCheck verifies closing >= quantity for the user/resource. Returns
// NotFoundError when no balance row exists, InsufficientBalanceError when
// the balance does not cover the quantity.
func (l *Ledger) PreCheck(ctx context.Context, userID UserID, resourceType string, quantity decimal.Decimal) error {
	b, err := l.Balances.GetBalance(ctx, userID, resourceType)
	if err != nil {
		return err
	}
	if b.Closing.LessThan(quantity) {
		return &InsufficientBalanceError{
			UserID:       userID,
			ResourceType: resourceType,
			Available:    b.Closing,
			Requested:    quantity,
		}
	}
	return nil
}

// Deduct consumes days from the balance: days = max(1, days), consumed
// incremented, closing recomputed. Invoked at most once per request,
// exactly at the finalizing transition, inside its transaction.
func (l *Ledger) Deduct(ctx context.Context, userID UserID, resourceType string, days decimal.Decimal) error {
	b, err := l.Balances.GetBalance(ctx, userID, resourceType)
	if err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	if days.LessThan(one) {
		days = one
	}

	b.Consumed = b.Consumed.Add(days)
	b.Closing = b.ComputeClosing()
	if b.Closing.IsNegative() {
		return &InsufficientBalanceError{
			UserID:       userID,
			ResourceType: resourceType,
			Available:    b.Closing.Add(days),
			Requested:    days,
		}
	}

	b.UpdatedAt = time.Now().UTC()
	return l.Balances.SaveBalance(ctx, *b)
}

// Seed installs or replaces the balance row for a user/resource. Closing
// is always recomputed from the identity; callers cannot store an
// inconsistent row.
func (l *Ledger) Seed(ctx context.Context, b Balance) (Balance, error) {
	b.Closing = b.ComputeClosing()
	b.UpdatedAt = time.Now().UTC()
	if err := l.Balances.SaveBalance(ctx, b); err != nil {
		return Balance{}, err
	}
	return b, nil
}
