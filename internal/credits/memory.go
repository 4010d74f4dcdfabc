package credits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type accountKey struct {
	orgID      uuid.UUID
	creditType CreditType
}

// MemoryLedger is a mutex-guarded in-process Ledger for tests and local runs.
// It honors the same invariants as the Postgres implementation.
type MemoryLedger struct {
	mu           sync.Mutex
	balances     map[accountKey]int
	open         map[uuid.UUID]*Reservation
	transactions []Transaction
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[accountKey]int),
		open:     make(map[uuid.UUID]*Reservation),
	}
}

// Grant adds credits to an account.
func (l *MemoryLedger) Grant(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) error {
	if count <= 0 {
		return fmt.Errorf("credits: grant count must be positive, got %d", count)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[accountKey{orgID, creditType}] += count
	l.append(orgID, creditType, count, ReasonGranted)
	return nil
}

// Reserve debits the balance if it covers count, in one critical section.
func (l *MemoryLedger) Reserve(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) (*Reservation, error) {
	if count <= 0 {
		return nil, fmt.Errorf("credits: reserve count must be positive, got %d", count)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := accountKey{orgID, creditType}
	if l.balances[key] < count {
		return nil, fmt.Errorf("credits: balance %d cannot cover %d: %w", l.balances[key], count, ErrInsufficientCredits)
	}
	l.balances[key] -= count

	res := &Reservation{
		ID:         uuid.New(),
		OrgID:      orgID,
		CreditType: creditType,
		Count:      count,
		CreatedAt:  time.Now().UTC(),
	}
	l.open[res.ID] = res
	l.append(orgID, creditType, -count, ReasonReserved)
	return res, nil
}

// Commit finalizes a reservation without touching the balance.
func (l *MemoryLedger) Commit(ctx context.Context, res *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.take(res); err != nil {
		return err
	}
	l.append(res.OrgID, res.CreditType, 0, ReasonCommitted)
	return nil
}

// Release refunds a reservation.
func (l *MemoryLedger) Release(ctx context.Context, res *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.take(res); err != nil {
		return err
	}
	l.balances[accountKey{res.OrgID, res.CreditType}] += res.Count
	l.append(res.OrgID, res.CreditType, res.Count, ReasonReleased)
	return nil
}

// Balance reports the current balance for one account.
func (l *MemoryLedger) Balance(ctx context.Context, orgID uuid.UUID, creditType CreditType) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountKey{orgID, creditType}], nil
}

// History returns the org's transactions, newest first.
func (l *MemoryLedger) History(ctx context.Context, orgID uuid.UUID, limit int) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Entries are appended chronologically; walk backwards for newest-first.
	var out []Transaction
	for i := len(l.transactions) - 1; i >= 0; i-- {
		if l.transactions[i].OrgID != orgID {
			continue
		}
		out = append(out, l.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// take removes an open reservation, enforcing single finalization.
// Caller holds the mutex.
func (l *MemoryLedger) take(res *Reservation) error {
	if res == nil {
		return fmt.Errorf("credits: nil reservation: %w", ErrReservationMismatch)
	}
	if _, ok := l.open[res.ID]; !ok {
		return fmt.Errorf("credits: reservation %s: %w", res.ID, ErrReservationMismatch)
	}
	delete(l.open, res.ID)
	return nil
}

// append records a transaction. Caller holds the mutex.
func (l *MemoryLedger) append(orgID uuid.UUID, creditType CreditType, delta int, reason Reason) {
	l.transactions = append(l.transactions, Transaction{
		ID:         uuid.New(),
		OrgID:      orgID,
		CreditType: creditType,
		Delta:      delta,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	})
}
