package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/api"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type Payment struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Reference string          `db:"reference" json:"reference"`
	Status    Status          `db:"status" json:"status"`
	Email     string          `db:"email" json:"email"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Authorization is what the gateway hands back for a new transaction.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the gateway's view of a transaction.
type Verification struct {
	Reference   string
	Success     bool
	Status      string
	AmountMinor int64
	Message     string
}

type InitiateRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type InitiateResponse struct {
	AuthorizationURL string          `json:"authorization_url"`
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
}

type VerifyResult struct {
	Payment          *Payment         `json:"payment"`
	AlreadyProcessed bool             `json:"already_processed"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
}

// ToMinor converts an amount to kobo.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type plain Payment
	return json.Marshal(struct {
		plain
		Amount string `json:"amount"`
	}{plain(p), api.Money(p.Amount)})
}

func (r InitiateResponse) MarshalJSON() ([]byte, error) {
	type plain InitiateResponse
	return json.Marshal(struct {
		plain
		Amount string `json:"amount"`
	}{plain(r), api.Money(r.Amount)})
}

func (r VerifyResult) MarshalJSON() ([]byte, error) {
	type plain VerifyResult
	out := struct {
		plain
		Balance *string `json:"balance,omitempty"`
	}{plain: plain(r)}
	if r.Balance != nil {
		b := api.Money(*r.Balance)
		out.Balance = &b
	}
	return json.Marshal(out)
}
