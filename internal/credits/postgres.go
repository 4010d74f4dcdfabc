package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerSchema is applied by EnsureSchema. Reservations carry a status so a
// crashed run leaves an auditable open row that ReleaseStale can reconcile.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	org_id      UUID        NOT NULL,
	credit_type TEXT        NOT NULL,
	balance     INTEGER     NOT NULL DEFAULT 0 CHECK (balance >= 0),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (org_id, credit_type)
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          UUID        PRIMARY KEY,
	org_id      UUID        NOT NULL,
	credit_type TEXT        NOT NULL,
	delta       INTEGER     NOT NULL,
	reason      TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_org
	ON credit_transactions (org_id, created_at DESC);

CREATE TABLE IF NOT EXISTS credit_reservations (
	id          UUID        PRIMARY KEY,
	org_id      UUID        NOT NULL,
	credit_type TEXT        NOT NULL,
	count       INTEGER     NOT NULL CHECK (count > 0),
	status      TEXT        NOT NULL DEFAULT 'open',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finalized_at TIMESTAMPTZ
);
`

// PostgresLedger implements Ledger on a pgx connection pool. Concurrent
// reservations against the same account serialize on the account row via
// SELECT ... FOR UPDATE.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger wraps an existing pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

// Grant adds credits to an account, creating the account row on first use.
func (l *PostgresLedger) Grant(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) error {
	if count <= 0 {
		return fmt.Errorf("credits: grant count must be positive, got %d", count)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin grant: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO credit_accounts (org_id, credit_type, balance, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (org_id, credit_type)
		 DO UPDATE SET balance = credit_accounts.balance + $3, updated_at = NOW()`,
		orgID, creditType, count,
	)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	if err := insertTransaction(ctx, tx, orgID, creditType, count, ReasonGranted); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}
	return nil
}

// Reserve atomically checks and debits the balance. The account row lock
// makes concurrent reserves against the same account strictly sequential, so
// two callers can never both observe a stale balance.
func (l *PostgresLedger) Reserve(ctx context.Context, orgID uuid.UUID, creditType CreditType, count int) (*Reservation, error) {
	if count <= 0 {
		return nil, fmt.Errorf("credits: reserve count must be positive, got %d", count)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reserve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var balance int
	err = tx.QueryRow(ctx,
		`SELECT balance FROM credit_accounts
		 WHERE org_id = $1 AND credit_type = $2
		 FOR UPDATE`,
		orgID, creditType,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("credits: no %s account for org %s: %w", creditType, orgID, ErrInsufficientCredits)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if balance < count {
		return nil, fmt.Errorf("credits: balance %d cannot cover %d: %w", balance, count, ErrInsufficientCredits)
	}

	_, err = tx.Exec(ctx,
		`UPDATE credit_accounts SET balance = balance - $3, updated_at = NOW()
		 WHERE org_id = $1 AND credit_type = $2`,
		orgID, creditType, count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	res := &Reservation{
		ID:         uuid.New(),
		OrgID:      orgID,
		CreditType: creditType,
		Count:      count,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO credit_reservations (id, org_id, credit_type, count, status, created_at)
		 VALUES ($1, $2, $3, $4, 'open', $5)`,
		res.ID, res.OrgID, res.CreditType, res.Count, res.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record reservation: %w", err)
	}

	if err := insertTransaction(ctx, tx, orgID, creditType, -count, ReasonReserved); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reserve: %w", err)
	}
	return res, nil
}

// Commit marks a reservation consumed. No balance change.
func (l *PostgresLedger) Commit(ctx context.Context, res *Reservation) error {
	return l.finalize(ctx, res, "committed", func(ctx context.Context, tx pgx.Tx) error {
		return insertTransaction(ctx, tx, res.OrgID, res.CreditType, 0, ReasonCommitted)
	})
}

// Release refunds a reservation whose work never ran.
func (l *PostgresLedger) Release(ctx context.Context, res *Reservation) error {
	return l.finalize(ctx, res, "released", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE credit_accounts SET balance = balance + $3, updated_at = NOW()
			 WHERE org_id = $1 AND credit_type = $2`,
			res.OrgID, res.CreditType, res.Count,
		)
		if err != nil {
			return fmt.Errorf("failed to refund account: %w", err)
		}
		return insertTransaction(ctx, tx, res.OrgID, res.CreditType, res.Count, ReasonReleased)
	})
}

// finalize flips an open reservation to status exactly once and then applies
// the reason-specific effect inside the same transaction.
func (l *PostgresLedger) finalize(ctx context.Context, res *Reservation, status string, effect func(context.Context, pgx.Tx) error) error {
	if res == nil {
		return fmt.Errorf("credits: nil reservation: %w", ErrReservationMismatch)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE credit_reservations SET status = $2, finalized_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		res.ID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credits: reservation %s: %w", res.ID, ErrReservationMismatch)
	}

	if err := effect(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit finalize: %w", err)
	}
	return nil
}

// Balance reports the current balance, zero for accounts that never existed.
func (l *PostgresLedger) Balance(ctx context.Context, orgID uuid.UUID, creditType CreditType) (int, error) {
	var balance int
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE org_id = $1 AND credit_type = $2`,
		orgID, creditType,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// History returns the org's transactions, newest first.
func (l *PostgresLedger) History(ctx context.Context, orgID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, org_id, credit_type, delta, reason, created_at
		 FROM credit_transactions
		 WHERE org_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		orgID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.OrgID, &t.CreditType, &t.Delta, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}

// ReleaseStale refunds open reservations older than the cutoff. This is the
// operator-facing reconciliation path for runs that crashed between reserve
// and commit.
func (l *PostgresLedger) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := l.pool.Query(ctx,
		`SELECT id, org_id, credit_type, count, created_at
		 FROM credit_reservations
		 WHERE status = 'open' AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale reservations: %w", err)
	}

	var stale []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.OrgID, &r.CreditType, &r.Count, &r.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan reservation: %w", err)
		}
		stale = append(stale, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read stale reservations: %w", err)
	}

	released := 0
	for i := range stale {
		if err := l.Release(ctx, &stale[i]); err != nil {
			// Raced with a concurrent finalize; skip and keep going.
			if errors.Is(err, ErrReservationMismatch) {
				continue
			}
			return released, err
		}
		released++
	}
	return released, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, creditType CreditType, delta int, reason Reason) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO credit_transactions (id, org_id, credit_type, delta, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.New(), orgID, creditType, delta, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s transaction: %w", reason, err)
	}
	return nil
}
