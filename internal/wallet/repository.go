package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrWalletNotFound = errors.New("wallet not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO wallets (user_id)
		 VALUES ($1)
		 RETURNING id, user_id, balance, created_at, updated_at`,
		userID,
	).StructScan(w)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repository) GetByUserID(ctx context.Context, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := r.db.GetContext(ctx, w,
		`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// LockByUserID holds the wallet row until tx ends, serializing concurrent balance changes.
func (r *repository) LockByUserID(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error) {
	w := &Wallet{}
	err := tx.QueryRowxContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at
		 FROM wallets
		 WHERE user_id = $1
		 FOR UPDATE`,
		userID,
	).StructScan(w)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *repository) UpdateBalance(ctx context.Context, tx *sqlx.Tx, walletID int, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets
		 SET balance = $1, updated_at = NOW()
		 WHERE id = $2`,
		balance, walletID,
	)
	return err
}

func (r *repository) InsertTransaction(ctx context.Context, tx *sqlx.Tx, entry *Transaction) (*Transaction, error) {
	out := &Transaction{}
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, kind, amount, balance_after, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, wallet_id, kind, amount, balance_after, description, created_at`,
		entry.WalletID, entry.Kind, entry.Amount, entry.BalanceAfter, entry.Description,
	).StructScan(out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) GetTransactions(ctx context.Context, walletID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, wallet_id, kind, amount, balance_after, description, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// Reconcile reads the balance and the ledger sums in one statement so both come from the same snapshot.
func (r *repository) Reconcile(ctx context.Context, userID int) (*Reconciliation, error) {
	rec := &Reconciliation{}
	err := r.db.GetContext(ctx, rec, `
		SELECT
			w.id AS wallet_id,
			w.user_id,
			w.balance,
			COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'CREDIT'), 0) AS credits,
			COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'DEBIT'), 0) AS debits
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		WHERE w.user_id = $1
		GROUP BY w.id
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	rec.Balanced = rec.Credits.Sub(rec.Debits).Equal(rec.Balance)
	return rec, nil
}
