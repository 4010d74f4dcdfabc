// Package credits implements the prepaid credit ledger: per-organization
// balances debited at reservation time so they can never go negative, with an
// append-only transaction history.
package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreditType identifies which prepaid balance an operation draws from.
type CreditType string

// Supported credit types.
const (
	CreditCVProcessing CreditType = "cv_processing"
	CreditInterview    CreditType = "interview"
)

// Reason explains why a transaction was recorded.
type Reason string

// Transaction reasons. Every balance mutation and reservation finalization
// appends exactly one row.
const (
	ReasonReserved  Reason = "reserved"
	ReasonReleased  Reason = "released"
	ReasonCommitted Reason = "committed"
	ReasonGranted   Reason = "granted"
)

// ErrInsufficientCredits is returned when a reservation asks for more credits
// than the organization's balance holds.
var ErrInsufficientCredits = errors.New("credits: insufficient balance")

// ErrReservationMismatch is returned when Commit or Release is called with an
// unknown or already-finalized reservation. It indicates a caller bug.
var ErrReservationMismatch = errors.New("credits: unknown or finalized reservation")

// Transaction is one append-only ledger entry. Entries are never mutated or
// deleted.
type Transaction struct {
	ID         uuid.UUID  `json:"id"`
	OrgID      uuid.UUID  `json:"org_id"`
	CreditType CreditType `json:"credit_type"`
	Delta      int        `json:"delta"`
	Reason     Reason     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Reservation is a provisional debit: the balance already dropped when it was
// created, and it converts to a permanent commit or is reversed by a release.
type Reservation struct {
	ID         uuid.UUID  `json:"id"`
	OrgID      uuid.UUID  `json:"org_id"`
	CreditType CreditType `json:"credit_type"`
	Count      int        `json:"count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Ledger is the credit accounting contract. Implementations must serialize
// concurrent reservations against the same (org, credit type) account so the
// balance can never be oversold.
type Ledger interface {
	// Grant adds credits to an organization's balance.
	Grant(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) error
	// Reserve atomically checks balance >= count and debits it, recording a
	// negative-delta transaction. Fails with ErrInsufficientCredits.
	Reserve(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) (*Reservation, error)
	// Commit consumes a reservation permanently. No balance change; the debit
	// happened at reserve time. Records a zero-delta audit row.
	Commit(ctx context.Context, res *Reservation) error
	// Release refunds a reservation whose work never ran.
	Release(ctx context.Context, res *Reservation) error
	// Balance reports the current balance for one account.
	Balance(ctx context.Context, orgID uuid.UUID, creditType CreditType) (int, error)
	// History returns up to limit transactions for the org, newest first.
	History(ctx context.Context, orgID uuid.UUID, limit int) ([]Transaction, error)
}
