package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/techfussion/bts/internal/auth"
	"github.com/techfussion/bts/internal/db"
	"github.com/techfussion/bts/internal/events"
	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/metrics"
	"github.com/techfussion/bts/internal/qrcode"
	"github.com/techfussion/bts/internal/wallet"
)

const maxReferenceAttempts = 5

var ErrInvalidRange = errors.New("from must be before to")

// Notifier sends the ticket confirmation. Implemented by the email queue.
type Notifier interface {
	SendTicketConfirmation(ctx context.Context, to, username, reference, ticketNumber, fare string) error
}

type Service interface {
	CreateBooking(ctx context.Context, caller auth.Caller, fare decimal.Decimal) (*Booking, *wallet.Transaction, error)
	Redeem(ctx context.Context, reference string) (*RedeemResult, error)
	ListForUser(ctx context.Context, userID int) ([]Booking, error)
	GetForUser(ctx context.Context, userID, id int) (*Booking, error)
	QRCode(ctx context.Context, caller auth.Caller, id int) (string, []byte, error)
	ListAll(ctx context.Context, filter ListFilter) ([]BookingWithUser, error)
	Stats(ctx context.Context) (*Stats, error)
	Daily(ctx context.Context, from, to time.Time) ([]DailyStats, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo      Repository
	ledger    wallet.Ledger
	txr       db.Transactor
	gen       Generator
	encoder   qrcode.Encoder
	notifier  Notifier
	publisher events.Publisher
}

func NewService(
	repo Repository,
	ledger wallet.Ledger,
	txr db.Transactor,
	gen Generator,
	encoder qrcode.Encoder,
	notifier Notifier,
	publisher events.Publisher,
) Service {
	return &service{
		repo:      repo,
		ledger:    ledger,
		txr:       txr,
		gen:       gen,
		encoder:   encoder,
		notifier:  notifier,
		publisher: publisher,
	}
}

// CreateBooking debits the fare, inserts the ticket and stores its QR image in one transaction.
func (s *service) CreateBooking(ctx context.Context, caller auth.Caller, fare decimal.Decimal) (*Booking, *wallet.Transaction, error) {
	var (
		booking *Booking
		debit   *wallet.Transaction
	)

	err := s.txr.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		debit, err = s.ledger.Debit(ctx, tx, caller.UserID, fare, PurchaseDescription)
		if err != nil {
			return err
		}

		booking, err = s.insertWithFreshReference(ctx, tx, caller.UserID, fare)
		if err != nil {
			return err
		}

		payload := qrcode.Payload(booking.Reference, booking.TicketNumber, caller.Username)
		png, err := s.encoder.Encode(payload)
		if err != nil {
			return err
		}

		filename := qrcode.Filename(booking.Reference)
		if err := s.repo.SetQRCode(ctx, tx, booking.ID, filename, png); err != nil {
			return fmt.Errorf("store qr code: %w", err)
		}
		booking.QRFilename = filename
		booking.QRCode = png

		return nil
	})
	if err != nil {
		metrics.RecordBooking(bookingFailureLabel(err))
		return nil, nil, err
	}

	metrics.RecordBooking("success")
	metrics.RecordWalletMovement(string(wallet.KindDebit), "booking")
	logger.Info("Booking created",
		"user_id", caller.UserID,
		"reference", booking.Reference,
		"ticket_number", booking.TicketNumber,
		"balance", debit.BalanceAfter.StringFixed(2),
	)

	s.publish(ctx, events.BookingCreated, caller.UserID, map[string]interface{}{
		"booking_id":        booking.ID,
		"user_id":           caller.UserID,
		"booking_reference": booking.Reference,
		"ticket_number":     booking.TicketNumber,
		"fare":              booking.Fare.StringFixed(2),
	})

	if caller.Email != "" {
		if err := s.notifier.SendTicketConfirmation(ctx, caller.Email, caller.Username, booking.Reference, booking.TicketNumber, booking.Fare.StringFixed(2)); err != nil {
			logger.Warn("Failed to queue ticket confirmation", "reference", booking.Reference, "error", err)
		}
	}

	return booking, debit, nil
}

func (s *service) insertWithFreshReference(ctx context.Context, tx *sqlx.Tx, userID int, fare decimal.Decimal) (*Booking, error) {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		booking, err := s.repo.Create(ctx, tx, &Booking{
			UserID:       userID,
			Reference:    s.gen.BookingReference(),
			TicketNumber: s.gen.TicketNumber(),
			Fare:         fare,
		})
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return nil, fmt.Errorf("insert booking: %w", err)
		}

		metrics.RecordReferenceCollision()
		logger.Warn("Booking reference collision", "attempt", attempt)
	}

	return nil, ErrDuplicateReference
}

func bookingFailureLabel(err error) string {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDuplicateReference):
		return "duplicate_reference"
	default:
		return "error"
	}
}

// Redeem moves an ACTIVE ticket to USED. A ticket that is already USED or EXPIRED
// yields a non-mutating outcome rather than an error.
func (s *service) Redeem(ctx context.Context, reference string) (*RedeemResult, error) {
	var result *RedeemResult

	err := s.txr.WithinTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByReferenceForUpdate(ctx, tx, reference)
		if err != nil {
			return err
		}

		switch b.Status {
		case StatusUsed:
			result = &RedeemResult{Outcome: OutcomeAlreadyUsed}
			return nil
		case StatusExpired:
			result = &RedeemResult{Outcome: OutcomeExpired}
			return nil
		}

		usedAt, err := s.repo.MarkUsed(ctx, tx, b.ID)
		if err != nil {
			if errors.Is(err, ErrNotActive) {
				result = &RedeemResult{Outcome: OutcomeAlreadyUsed}
				return nil
			}
			return fmt.Errorf("mark booking used: %w", err)
		}

		b.Status = StatusUsed
		b.UsedAt = &usedAt
		result = &RedeemResult{Outcome: OutcomeRedeemed, Snapshot: NewSnapshot(b)}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			metrics.RecordRedemption("not_found")
		}
		return nil, err
	}

	metrics.RecordRedemption(string(result.Outcome))
	logger.Info("Ticket redemption", "reference", reference, "outcome", result.Outcome)

	if result.Outcome == OutcomeRedeemed {
		s.publish(ctx, events.TicketRedeemed, 0, map[string]interface{}{
			"booking_reference": result.Snapshot.Reference,
			"ticket_number":     result.Snapshot.TicketNumber,
			"user":              result.Snapshot.User,
		})
	}

	return result, nil
}

func (s *service) ListForUser(ctx context.Context, userID int) ([]Booking, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) GetForUser(ctx context.Context, userID, id int) (*Booking, error) {
	return s.repo.GetForUser(ctx, userID, id)
}

// QRCode returns the stored image, regenerating it from the ticket fields when none is stored.
func (s *service) QRCode(ctx context.Context, caller auth.Caller, id int) (string, []byte, error) {
	b, err := s.repo.GetForUser(ctx, caller.UserID, id)
	if err != nil {
		return "", nil, err
	}
	if len(b.QRCode) > 0 {
		return b.QRFilename, b.QRCode, nil
	}

	png, err := s.encoder.Encode(qrcode.Payload(b.Reference, b.TicketNumber, caller.Username))
	if err != nil {
		return "", nil, err
	}
	return qrcode.Filename(b.Reference), png, nil
}

func (s *service) ListAll(ctx context.Context, filter ListFilter) ([]BookingWithUser, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	return s.repo.ListAll(ctx, filter)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *service) Daily(ctx context.Context, from, to time.Time) ([]DailyStats, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	return s.repo.Daily(ctx, from, to)
}

func (s *service) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	logger.Info("Bookings expired", "cutoff", cutoff.Format(time.RFC3339), "count", n)
	if n > 0 {
		s.publish(ctx, events.BookingsExpired, 0, map[string]interface{}{
			"cutoff": cutoff.UTC(),
			"count":  n,
		})
	}

	return n, nil
}

func (s *service) publish(ctx context.Context, eventType string, userID int, data map[string]interface{}) {
	key := "bookings"
	if userID > 0 {
		key = "user:" + strconv.Itoa(userID)
	}
	if err := s.publisher.Publish(ctx, events.New(eventType, key, data)); err != nil {
		logger.Warn("Failed to publish booking event", "type", eventType, "error", err)
	}
}
