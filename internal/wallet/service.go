package wallet

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/events"
	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/metrics"
)

const ManualFundingDescription = "Manual Wallet Funding"

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be a positive value with at most 2 decimal places")
)

// Ledger is the only write path for wallet balances. Credit and Debit run inside the
// caller's transaction so they compose with booking and payment writes.
type Ledger interface {
	Open(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error)
	Credit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*Transaction, error)
	Debit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*Transaction, error)
	Fund(ctx context.Context, userID int, amount decimal.Decimal) (*Transaction, error)
	Balance(ctx context.Context, userID int) (*Wallet, error)
	Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
	Reconcile(ctx context.Context, userID int) (*Reconciliation, error)
}

type ledger struct {
	repo      Repository
	txr       db.Transactor
	publisher events.Publisher
}

func NewLedger(repo Repository, txr db.Transactor, publisher events.Publisher) Ledger {
	return &ledger{
		repo:      repo,
		txr:       txr,
		publisher: publisher,
	}
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func (l *ledger) Open(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error) {
	return l.repo.Create(ctx, tx, userID)
}

func (l *ledger) Credit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, userID, KindCredit, amount, description)
}

func (l *ledger) Debit(ctx context.Context, tx *sqlx.Tx, userID int, amount decimal.Decimal, description string) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, userID, KindDebit, amount, description)
}

func (l *ledger) apply(ctx context.Context, tx *sqlx.Tx, userID int, kind Kind, amount decimal.Decimal, description string) (*Transaction, error) {
	w, err := l.repo.LockByUserID(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	newBalance := w.Balance.Add(amount)
	if kind == KindDebit {
		if amount.GreaterThan(w.Balance) {
			return nil, ErrInsufficientFunds
		}
		newBalance = w.Balance.Sub(amount)
	}

	if err := l.repo.UpdateBalance(ctx, tx, w.ID, newBalance); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	entry, err := l.repo.InsertTransaction(ctx, tx, &Transaction{
		WalletID:     w.ID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: newBalance,
		Description:  description,
	})
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	return entry, nil
}

func (l *ledger) Fund(ctx context.Context, userID int, amount decimal.Decimal) (*Transaction, error) {
	var entry *Transaction
	err := l.txr.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = l.Credit(ctx, tx, userID, amount, ManualFundingDescription)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWalletMovement(string(KindCredit), "manual")
	l.publish(ctx, userID, entry)
	logger.Info("Wallet funded", "user_id", userID, "amount", amount.StringFixed(2), "balance", entry.BalanceAfter.StringFixed(2))

	return entry, nil
}

func (l *ledger) publish(ctx context.Context, userID int, entry *Transaction) {
	e := events.New(events.WalletCredited, "user:"+strconv.Itoa(userID), map[string]interface{}{
		"user_id":       userID,
		"wallet_id":     entry.WalletID,
		"amount":        entry.Amount.StringFixed(2),
		"balance_after": entry.BalanceAfter.StringFixed(2),
		"description":   entry.Description,
	})
	if err := l.publisher.Publish(ctx, e); err != nil {
		logger.Warn("Failed to publish wallet event", "user_id", userID, "error", err)
	}
}

func (l *ledger) Balance(ctx context.Context, userID int) (*Wallet, error) {
	return l.repo.GetByUserID(ctx, userID)
}

func (l *ledger) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	w, err := l.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.repo.GetTransactions(ctx, w.ID, limit, offset)
}

func (l *ledger) Reconcile(ctx context.Context, userID int) (*Reconciliation, error) {
	rec, err := l.repo.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.Balanced {
		logger.Error("Wallet ledger out of balance",
			"user_id", userID,
			"balance", rec.Balance.StringFixed(2),
			"credits", rec.Credits.StringFixed(2),
			"debits", rec.Debits.StringFixed(2),
		)
	}
	return rec, nil
}
