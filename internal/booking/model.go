package booking

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/api"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusUsed    Status = "USED"
	StatusExpired Status = "EXPIRED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired:
		return true
	}
	return false
}

const (
	PurchaseDescription = "Bus Ticket Purchase"
	SnapshotDateLayout  = "2006-01-02 15:04"
	dayLayout           = "2006-01-02"
)

type Booking struct {
	ID           int             `db:"id" json:"id"`
	UserID       int             `db:"user_id" json:"user_id"`
	Reference    string          `db:"booking_reference" json:"booking_reference"`
	TicketNumber string          `db:"ticket_number" json:"ticket_number"`
	Fare         decimal.Decimal `db:"fare" json:"fare"`
	Status       Status          `db:"status" json:"status"`
	QRFilename   string          `db:"qr_filename" json:"qr_filename"`
	QRCode       []byte          `db:"qr_png" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UsedAt       *time.Time      `db:"used_at" json:"used_at,omitempty"`
}

// BookingWithUser is a booking joined with its owner's username, as staff see it.
type BookingWithUser struct {
	Booking
	Username string `db:"username" json:"username"`
}

// ListFilter narrows the staff booking list. Zero values mean no filter.
type ListFilter struct {
	Status Status
	// Query matches booking reference, ticket number or username, case-insensitively.
	Query string
}

type Outcome string

const (
	OutcomeRedeemed    Outcome = "REDEEMED"
	OutcomeAlreadyUsed Outcome = "ALREADY_USED"
	OutcomeExpired     Outcome = "EXPIRED"
)

// Snapshot holds the public fields of a redeemed ticket.
type Snapshot struct {
	Reference    string `json:"booking_reference"`
	TicketNumber string `json:"ticket_number"`
	User         string `json:"user"`
	Fare         string `json:"fare"`
	BookingDate  string `json:"booking_date"`
	Status       Status `json:"status"`
}

func NewSnapshot(b *BookingWithUser) *Snapshot {
	return &Snapshot{
		Reference:    b.Reference,
		TicketNumber: b.TicketNumber,
		User:         b.Username,
		Fare:         b.Fare.StringFixed(2),
		BookingDate:  b.CreatedAt.Format(SnapshotDateLayout),
		Status:       b.Status,
	}
}

type RedeemResult struct {
	Outcome  Outcome
	Snapshot *Snapshot
}

type Stats struct {
	Total   int `db:"total" json:"total"`
	Active  int `db:"active" json:"active"`
	Used    int `db:"used" json:"used"`
	Expired int `db:"expired" json:"expired"`
}

// DailyStats buckets tickets by the calendar day they were bought.
type DailyStats struct {
	Day     string          `db:"day" json:"day" example:"2024-03-01"`
	Created int             `db:"created" json:"created"`
	Used    int             `db:"used" json:"used"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

type CreateBookingResponse struct {
	Message string          `json:"message" example:"Ticket purchased successfully"`
	Booking *Booking        `json:"booking"`
	Balance decimal.Decimal `json:"balance"`
}

type ExpireRequest struct {
	Before time.Time `json:"before" validate:"required"`
}

type ExpireResponse struct {
	Expired int64 `json:"expired"`
}

func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		Fare string `json:"fare"`
	}{plain(b), api.Money(b.Fare)})
}

func (d DailyStats) MarshalJSON() ([]byte, error) {
	type plain DailyStats
	return json.Marshal(struct {
		plain
		Revenue string `json:"revenue"`
	}{plain(d), api.Money(d.Revenue)})
}

func (r CreateBookingResponse) MarshalJSON() ([]byte, error) {
	type plain CreateBookingResponse
	return json.Marshal(struct {
		plain
		Balance string `json:"balance"`
	}{plain(r), api.Money(r.Balance)})
}

func (b BookingWithUser) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		Fare     string `json:"fare"`
		Username string `json:"username"`
	}{plain(b.Booking), api.Money(b.Fare), b.Username})
}
