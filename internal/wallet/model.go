package wallet

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/api"
)

type Kind string

const (
	KindCredit Kind = "CREDIT"
	KindDebit  Kind = "DEBIT"
)

type Wallet struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry. Amount is always positive; Kind carries the sign.
type Transaction struct {
	ID           int             `db:"id" json:"id"`
	WalletID     int             `db:"wallet_id" json:"wallet_id"`
	Kind         Kind            `db:"kind" json:"kind"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description  string          `db:"description" json:"description"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Reconciliation compares the stored balance with the sum of the ledger entries.
type Reconciliation struct {
	WalletID int             `db:"wallet_id" json:"wallet_id"`
	UserID   int             `db:"user_id" json:"user_id"`
	Balance  decimal.Decimal `db:"balance" json:"balance"`
	Credits  decimal.Decimal `db:"credits" json:"credits"`
	Debits   decimal.Decimal `db:"debits" json:"debits"`
	Balanced bool            `db:"-" json:"balanced"`
}

type FundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type FundResponse struct {
	Message     string          `json:"message"`
	Balance     decimal.Decimal `json:"balance"`
	Transaction *Transaction    `json:"transaction"`
}

func (w Wallet) MarshalJSON() ([]byte, error) {
	type plain Wallet
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
	}{plain(w), api.Money(w.Balance)})
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	return json.Marshal(struct {
		plain
		Amount       string `json:"amount"`
		BalanceAfter string `json:"balance_after"`
	}{plain(t), api.Money(t.Amount), api.Money(t.BalanceAfter)})
}

func (r Reconciliation) MarshalJSON() ([]byte, error) {
	type plain Reconciliation
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
		Credits string `json:"credits"`
		Debits  string `json:"debits"`
	}{plain(r), api.Money(r.Balance), api.Money(r.Credits), api.Money(r.Debits)})
}

func (r FundResponse) MarshalJSON() ([]byte, error) {
	type plain FundResponse
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
	}{plain(r), api.Money(r.Balance)})
}
