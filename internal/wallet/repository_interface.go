package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error)
	GetByUserID(ctx context.Context, userID int) (*Wallet, error)
	LockByUserID(ctx context.Context, tx *sqlx.Tx, userID int) (*Wallet, error)
	UpdateBalance(ctx context.Context, tx *sqlx.Tx, walletID int, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, tx *sqlx.Tx, entry *Transaction) (*Transaction, error)
	GetTransactions(ctx context.Context, walletID int, limit, offset int) ([]Transaction, error)
	Reconcile(ctx context.Context, userID int) (*Reconciliation, error)
}
